package admission

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcanehall/rulebook-host/internal/wire"
)

func TestPendingRoomOccupyFillsSeat(t *testing.T) {
	pr := newPendingRoom("room-1", "tic-tac-toe", wire.RoomInfo{Players: []wire.PlayerId{wire.Red, wire.Blue}})

	require.NoError(t, pr.occupy(wire.Red, nil))
	select {
	case <-pr.seats[wire.Red]:
	default:
		t.Fatal("expected the seat's channel to hold the connection")
	}
}

func TestPendingRoomOccupyRejectsUnknownPlayer(t *testing.T) {
	pr := newPendingRoom("room-1", "tic-tac-toe", wire.RoomInfo{Players: []wire.PlayerId{wire.Red, wire.Blue}})
	require.Error(t, pr.occupy(wire.Green, nil))
}

func TestPendingRoomOccupyRejectsDoubleOccupy(t *testing.T) {
	pr := newPendingRoom("room-1", "tic-tac-toe", wire.RoomInfo{Players: []wire.PlayerId{wire.Red, wire.Blue}})
	require.NoError(t, pr.occupy(wire.Red, nil))
	require.Error(t, pr.occupy(wire.Red, nil), "a second occupy of the same seat must fail")
}
