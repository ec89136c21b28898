// Package wsstream adapts a gorilla/websocket connection to the
// channel.Stream interface, the production transport for player channels.
// Grounded in websocket_hub_services.go.
package wsstream

import (
	"fmt"
	"io"

	"github.com/gorilla/websocket"
)

// Stream wraps a *websocket.Conn as a channel.Stream. Non-text control
// frames (ping/pong/binary) are skipped rather than surfaced, matching the
// original adapter's "Some(_) => Poll::Pending" behavior.
type Stream struct {
	conn *websocket.Conn
}

func New(conn *websocket.Conn) *Stream {
	return &Stream{conn: conn}
}

func (s *Stream) ReadMessage() (string, error) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				return "", fmt.Errorf("wsstream: peer closed: %w", io.EOF)
			}
			return "", err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return string(data), nil
	}
}

func (s *Stream) WriteMessage(text string) error {
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (s *Stream) Close() error {
	return s.conn.Close()
}
