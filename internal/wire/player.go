// Package wire defines the exact shape of the guest/host ABI: the JSON
// payloads a guest module exchanges with the host through trigger_io, and
// the frames a player connection exchanges with the host over its channel.
package wire

import (
	"encoding/json"
	"fmt"
)

// PlayerId is one of the eight fixed color tags a room may seat. The zero
// value is not a valid PlayerId; always go through the named constants.
type PlayerId string

const (
	Red     PlayerId = "red"
	Fuchsia PlayerId = "fuchsia"
	Green   PlayerId = "green"
	Lime    PlayerId = "lime"
	Yellow  PlayerId = "yellow"
	Blue    PlayerId = "blue"
	Aqua    PlayerId = "aqua"
	Orange  PlayerId = "orange"
)

// candidates is the canonical total order: index in this slice is the
// player's rank for ordering.
var candidates = []PlayerId{Red, Fuchsia, Green, Lime, Yellow, Blue, Aqua, Orange}

// Candidates returns the full set of seatable colors in their total order.
func Candidates() []PlayerId {
	out := make([]PlayerId, len(candidates))
	copy(out, candidates)
	return out
}

// Valid reports whether p is one of the eight known colors.
func (p PlayerId) Valid() bool {
	for _, c := range candidates {
		if c == p {
			return true
		}
	}
	return false
}

// ordinal returns p's position in the total order, or -1 if p is unknown.
func (p PlayerId) ordinal() int {
	for i, c := range candidates {
		if c == p {
			return i
		}
	}
	return -1
}

// Less reports whether p sorts before other in the PlayerId total order.
func (p PlayerId) Less(other PlayerId) bool {
	return p.ordinal() < other.ordinal()
}

func (p PlayerId) String() string {
	return string(p)
}

// UnmarshalJSON rejects any string outside the eight known colors, so a
// malformed guest payload fails fast instead of seating a ghost player.
func (p *PlayerId) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	candidate := PlayerId(s)
	if !candidate.Valid() {
		return fmt.Errorf("wire: %q is not a valid playerId", s)
	}
	*p = candidate
	return nil
}

// ContainsPlayer reports whether id appears anywhere in set.
func ContainsPlayer(set []PlayerId, id PlayerId) bool {
	for _, p := range set {
		if p == id {
			return true
		}
	}
	return false
}

// IsSubset reports whether every element of sub appears in super.
func IsSubset(sub, super []PlayerId) bool {
	for _, p := range sub {
		if !ContainsPlayer(super, p) {
			return false
		}
	}
	return true
}
