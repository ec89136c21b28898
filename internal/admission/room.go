package admission

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/arcanehall/rulebook-host/internal/wire"
)

// NewRoomID mints a fresh, collision-free room identifier using google/uuid.
func NewRoomID() string {
	return uuid.NewString()
}

// pendingRoom is a room that has been created but has not yet collected
// a raw connection for every seat. seats holds one buffered slot per
// PlayerId so a websocket upgrade that races ahead of room assembly
// still has somewhere to land.
type pendingRoom struct {
	id      string
	gameKey string
	room    wire.RoomInfo
	seats   map[wire.PlayerId]chan rawConn
}

func newPendingRoom(id, gameKey string, room wire.RoomInfo) *pendingRoom {
	seats := make(map[wire.PlayerId]chan rawConn, len(room.Players))
	for _, p := range room.Players {
		seats[p] = make(chan rawConn, 1)
	}
	return &pendingRoom{id: id, gameKey: gameKey, room: room, seats: seats}
}

// occupy hands conn to player's seat, failing if the seat is unknown or
// already occupied. Reconnection is not supported, so a second connection
// for an already-filled seat is simply rejected.
func (pr *pendingRoom) occupy(player wire.PlayerId, conn rawConn) error {
	ch, ok := pr.seats[player]
	if !ok {
		return fmt.Errorf("admission: %q is not seated in room %s", player, pr.id)
	}
	select {
	case ch <- conn:
		return nil
	default:
		return fmt.Errorf("admission: seat %q in room %s is already occupied", player, pr.id)
	}
}
