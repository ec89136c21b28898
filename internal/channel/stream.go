package channel

import (
	"errors"
	"io"
)

// Stream is the ordered bidirectional text stream a Channel is layered
// over. It deliberately mirrors gorilla/websocket's Conn
// method names so the production adapter in channel/wsstream is a thin
// pass-through, while tests can drive a Channel over any in-memory stand-in.
type Stream interface {
	// ReadMessage blocks for the next text frame. It returns io.EOF (or a
	// wrapped form of it) once the peer has closed the stream.
	ReadMessage() (string, error)
	// WriteMessage sends one text frame.
	WriteMessage(text string) error
	Close() error
}

// isClosed reports whether err signals a clean or abrupt stream close.
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}
