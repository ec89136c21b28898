// Package admission handles room creation, websocket upgrade, and handing
// completed seatings to the Session Orchestrator. Shaped after the
// teacher's Hub (register/unregister channel loop guarded by a
// sync.RWMutex) and its handlers package.
package admission

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/arcanehall/rulebook-host/internal/channel"
	"github.com/arcanehall/rulebook-host/internal/channel/wsstream"
	"github.com/arcanehall/rulebook-host/internal/orchestrator"
	"github.com/arcanehall/rulebook-host/internal/sandbox"
	"github.com/arcanehall/rulebook-host/internal/wire"
)

type rawConn = *websocket.Conn

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Lobby tracks rooms awaiting a full seating and, once a room's last
// seat is occupied, assembles the per-player channels and launches the
// orchestrated session. Exactly one Lobby is wired per server process.
type Lobby struct {
	registry *sandbox.Registry
	cfg      sandbox.Config
	recorder orchestrator.HistoryRecorder

	mu      sync.RWMutex
	pending map[string]*pendingRoom
}

func NewLobby(registry *sandbox.Registry, cfg sandbox.Config, recorder orchestrator.HistoryRecorder) *Lobby {
	if recorder == nil {
		recorder = orchestrator.NopHistoryRecorder{}
	}
	return &Lobby{
		registry: registry,
		cfg:      cfg,
		recorder: recorder,
		pending:  make(map[string]*pendingRoom),
	}
}

// CreateRoom registers a new pending room for gameKey with the given
// seating and returns its id. Players join it at /connect by room id
// and PlayerId.
func (l *Lobby) CreateRoom(gameKey string, players []wire.PlayerId) (string, error) {
	for _, p := range players {
		if !p.Valid() {
			return "", fmt.Errorf("admission: %q is not a valid player color", p)
		}
	}
	id := NewRoomID()
	room := wire.RoomInfo{Players: players}

	l.mu.Lock()
	l.pending[id] = newPendingRoom(id, gameKey, room)
	l.mu.Unlock()

	log.Printf("INFO: admission: room %s created for game %q with players %v", id, gameKey, players)
	return id, nil
}

// Join upgrades r to a websocket connection and hands it to roomID's
// seat for player. Once every seat in the room is occupied, the session
// is launched in its own goroutine.
func (l *Lobby) Join(w http.ResponseWriter, r *http.Request, roomID string, player wire.PlayerId) error {
	l.mu.RLock()
	pr, ok := l.pending[roomID]
	l.mu.RUnlock()
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return fmt.Errorf("admission: unknown room %q", roomID)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("admission: upgrade failed: %w", err)
	}

	if err := pr.occupy(player, conn); err != nil {
		conn.Close()
		return err
	}

	l.maybeStart(pr)
	return nil
}

// maybeStart launches the session once every seat has a connection. It
// is safe to call redundantly from concurrent joins; only the caller
// that observes the last seat filled wins the race to start.
func (l *Lobby) maybeStart(pr *pendingRoom) {
	l.mu.Lock()
	if _, stillPending := l.pending[pr.id]; !stillPending {
		l.mu.Unlock()
		return
	}
	for _, ch := range pr.seats {
		if len(ch) == 0 {
			l.mu.Unlock()
			return // not every seat is filled yet
		}
	}
	conns := make(map[wire.PlayerId]rawConn, len(pr.seats))
	for p, ch := range pr.seats {
		conns[p] = <-ch
	}
	delete(l.pending, pr.id)
	l.mu.Unlock()

	go l.run(pr, conns)
}

// run assembles channels, sends each player its handshake SessionInfo,
// then drives the guest to completion.
func (l *Lobby) run(pr *pendingRoom, conns map[wire.PlayerId]rawConn) {
	ctx := context.Background()
	channels := make(map[wire.PlayerId]*channel.Channel, len(conns))
	for p, conn := range conns {
		ch := channel.New(wsstream.New(conn))
		info := wire.SessionInfo{Room: pr.room, Player: p}
		if err := ch.Send(info); err != nil {
			log.Printf("ERROR: admission: handshake to %s in room %s failed: %v", p, pr.id, err)
			closeAll(channels)
			closeConns(conns)
			return
		}
		channels[p] = ch
	}

	session, err := l.registry.NewSession(pr.gameKey, l.cfg)
	if err != nil {
		log.Printf("ERROR: admission: no module for game %q: %v", pr.gameKey, err)
		closeAll(channels)
		return
	}

	orch := orchestrator.New(pr.room, channels, orchestrator.Config{
		EnableStateBroadcast: l.cfg.EnableStateBroadcast,
		GameKey:              pr.gameKey,
	}, seedFromRoom(pr.id), nil, l.recorder)

	log.Printf("INFO: admission: room %s starting session for game %q", pr.id, pr.gameKey)
	if err := session.Start(ctx, defaultInputCap, l.cfg.EnableStateBroadcast, pr.room, orch); err != nil {
		log.Printf("ERROR: admission: room %s session failed: %v", pr.id, err)
	}
}

const defaultInputCap = 16 * 1024

func closeAll(channels map[wire.PlayerId]*channel.Channel) {
	for _, ch := range channels {
		_ = ch.Close()
	}
}

func closeConns(conns map[wire.PlayerId]rawConn) {
	for _, c := range conns {
		_ = c.Close()
	}
}
