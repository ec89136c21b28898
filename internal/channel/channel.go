// Package channel implements a reliable, ack-per-message framed
// transport: one per connected player, layered over an ordered
// bidirectional text stream, with at-most-one-outstanding-send semantics
// that survive a message arriving while a send is in flight.
package channel

import (
	"encoding/json"
	"math"

	"github.com/arcanehall/rulebook-host/internal/wire"
)

// Channel is not safe for concurrent use: guest events arrive strictly
// sequentially, and the orchestrator's fan-out sends to each player's
// channel from exactly one goroutine, so no channel sees two calls at once.
type Channel struct {
	stream Stream
	nextID uint32

	// pending holds one incoming message whose delivery was deferred
	// because it arrived while we were waiting for our own send to be
	// acked. At most one may be buffered at a time.
	pending      *pendingMsg
	pendingIsSet bool
}

type pendingMsg struct {
	id  uint32
	val json.RawMessage
}

// New wraps stream in a Channel with a fresh id counter.
func New(stream Stream) *Channel {
	return &Channel{stream: stream}
}

// Send assigns the next strictly-increasing id, writes a msg frame, and
// blocks until the matching ack arrives. Any msg frame seen on the stream
// while waiting is stashed for the next Receive rather than dropped.
func (c *Channel) Send(val any) error {
	if c.nextID == math.MaxUint32 {
		return ErrIDOverflow
	}
	currentID := c.nextID
	c.nextID++

	payload, err := json.Marshal(val)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(wire.NewMsgFrame(currentID, payload))
	if err != nil {
		return err
	}
	if err := c.stream.WriteMessage(string(encoded)); err != nil {
		return err
	}

	for {
		raw, err := c.stream.ReadMessage()
		if err != nil {
			if isClosed(err) {
				return ErrConnectionClosedMidSend
			}
			return err
		}

		var frame wire.Frame
		if err := json.Unmarshal([]byte(raw), &frame); err != nil {
			return err
		}

		switch frame.Type {
		case wire.FrameAck:
			if frame.AckID == currentID {
				return nil
			}
			// A stale ack for some other id; keep waiting for ours.
		case wire.FrameMsg:
			if c.pendingIsSet {
				return ErrPendingOccupied
			}
			c.pending = &pendingMsg{id: frame.MsgID, val: frame.Val}
			c.pendingIsSet = true
		}
	}
}

// Receive returns the next message addressed to us, acking it on the wire.
// A msg stashed during a prior Send is delivered first.
func (c *Channel) Receive() (json.RawMessage, error) {
	if c.pendingIsSet {
		p := c.pending
		c.pending = nil
		c.pendingIsSet = false
		if err := c.ack(p.id); err != nil {
			return nil, err
		}
		return p.val, nil
	}

	for {
		raw, err := c.stream.ReadMessage()
		if err != nil {
			if isClosed(err) {
				return nil, ErrConnectionClosedMidReceive
			}
			return nil, err
		}

		var frame wire.Frame
		if err := json.Unmarshal([]byte(raw), &frame); err != nil {
			return nil, err
		}

		switch frame.Type {
		case wire.FrameMsg:
			if err := c.ack(frame.MsgID); err != nil {
				return nil, err
			}
			return frame.Val, nil
		case wire.FrameAck:
			// Stale ack from a send that already completed; ignore.
		}
	}
}

// ReceiveInto is a convenience wrapper that unmarshals the received value
// into out.
func (c *Channel) ReceiveInto(out any) error {
	raw, err := c.Receive()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *Channel) ack(id uint32) error {
	encoded, err := json.Marshal(wire.NewAckFrame(id))
	if err != nil {
		return err
	}
	return c.stream.WriteMessage(string(encoded))
}

// Close releases the underlying stream. Safe to call after a failed Send
// or Receive.
func (c *Channel) Close() error {
	return c.stream.Close()
}
