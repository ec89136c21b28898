package admission

import (
	"crypto/rand"
	"encoding/binary"
	"log"
)

// seedFromRoom draws a fresh, non-deterministic seed for a session's RNG.
// roomID is accepted for log correlation only. The host never logs
// randomness for replay, so the seed itself is drawn from crypto/rand
// rather than derived from the id.
func seedFromRoom(roomID string) int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		log.Printf("WARN: admission: room %s: crypto/rand unavailable, falling back to a fixed seed: %v", roomID, err)
		return 1
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1) // clear sign bit
}
