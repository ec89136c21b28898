package admission

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/arcanehall/rulebook-host/internal/wire"
)

// Handler bundles the lobby's HTTP surface as a handler-struct-plus-
// ServeMux, wired up in cmd/rulebookd/main.go.
type Handler struct {
	lobby *Lobby
}

func NewHandler(lobby *Lobby) *Handler {
	return &Handler{lobby: lobby}
}

type createRoomRequest struct {
	GameKey string          `json:"gameKey"`
	Players []wire.PlayerId `json:"players"`
}

type createRoomResponse struct {
	RoomID string `json:"roomId"`
}

// CreateRoom handles POST /rooms: { "gameKey": "...", "players": [...] }.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.GameKey == "" || len(req.Players) == 0 {
		respondWithError(w, http.StatusBadRequest, "gameKey and players are required")
		return
	}

	roomID, err := h.lobby.CreateRoom(req.GameKey, req.Players)
	if err != nil {
		log.Printf("ERROR: admission: create room failed: %v", err)
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, createRoomResponse{RoomID: roomID})
}

// Connect handles GET /connect/{roomID}?player=red and upgrades to a
// websocket connection on behalf of the lobby.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimPrefix(r.URL.Path, "/connect/")
	player := wire.PlayerId(r.URL.Query().Get("player"))

	if roomID == "" || !player.Valid() {
		http.Error(w, "room id and a valid player color are required", http.StatusBadRequest)
		return
	}

	if err := h.lobby.Join(w, r, roomID, player); err != nil {
		log.Printf("ERROR: admission: join failed for room %s player %s: %v", roomID, player, err)
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
