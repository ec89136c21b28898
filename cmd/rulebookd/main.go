/*
 * file: main.go
 * package: main
 * description:
 *     Initializes the application by setting up dependencies, configuring
 *     the history database, registering guest modules, and launching the
 *     HTTP server. Follows a dependency injection pattern to wire the
 *     sandbox, orchestrator, and admission layers together.
 */
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arcanehall/rulebook-host/internal/admission"
	"github.com/arcanehall/rulebook-host/internal/history"
	"github.com/arcanehall/rulebook-host/internal/orchestrator"
	"github.com/arcanehall/rulebook-host/internal/sandbox"
	"github.com/arcanehall/rulebook-host/internal/sandbox/wazerort"
)

func main() {
	ctx := context.Background()

	// History ledger initialization (supplemental to the core; a failed
	// connection here degrades to NopHistoryRecorder rather than
	// preventing the server from starting).
	var recorder *history.Recorder
	if dbConn, err := history.InitializeDatabase(); err != nil {
		log.Printf("WARN: history database unavailable, outcomes will not be recorded: %v", err)
	} else {
		log.Println("SUCCESS: History database connection pool established.")
		recorder = history.NewRecorder(dbConn)
	}

	// Sandbox runtime and module registry.
	guestRuntime := wazerort.New(ctx)
	registry := sandbox.NewRegistry(guestRuntime)

	modulesDir := os.Getenv("RULEBOOK_MODULES_DIR")
	if modulesDir == "" {
		modulesDir = "./modules"
	}
	if err := loadModules(ctx, registry, modulesDir); err != nil {
		log.Printf("WARN: module load from %s failed: %v", modulesDir, err)
	}

	sandboxCfg := sandbox.Config{
		EnableStateBroadcast: os.Getenv("RULEBOOK_ENABLE_STATE_BROADCAST") == "true",
		EnableLog:            os.Getenv("RULEBOOK_ENABLE_LOG") == "true",
	}

	lobby := admission.NewLobby(registry, sandboxCfg, recorderOrNil(recorder))
	handler := admission.NewHandler(lobby)

	router := http.NewServeMux()
	router.HandleFunc("/rooms", handler.CreateRoom)
	router.HandleFunc("/connect/", handler.Connect)

	server := &http.Server{
		Addr:         ":8080",
		Handler:      corsMiddleware(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Println("INFO: rulebookd starting on port 8080...")
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("FATAL: Could not start server: %v", err)
	}
}

// loadModules walks dir for *.wasm files and registers each under the
// key derived from its file name. Module file loading from disk is its
// own concern, so this is intentionally the simplest possible walk
// rather than a hot-reloadable loader.
func loadModules(ctx context.Context, registry *sandbox.Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".wasm") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		code, err := os.ReadFile(path)
		if err != nil {
			log.Printf("ERROR: reading module %s: %v", path, err)
			continue
		}
		key := sandbox.KeyFromFilename(entry.Name())
		if err := registry.Add(ctx, key, code); err != nil {
			log.Printf("ERROR: registering module %q: %v", key, err)
			continue
		}
		log.Printf("INFO: registered guest module %q from %s", key, path)
	}
	return nil
}

// recorderOrNil avoids handing admission.NewLobby a non-nil interface
// wrapping a nil *history.Recorder, which would defeat its own nil check.
func recorderOrNil(r *history.Recorder) orchestrator.HistoryRecorder {
	if r == nil {
		return nil
	}
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
