package channel

import "errors"

// Terminal channel failures. All are final for the channel: the
// orchestrator tears down the whole session rather than retrying.
var (
	ErrConnectionClosedMidSend    = errors.New("channel: connection closed mid-send")
	ErrConnectionClosedMidReceive = errors.New("channel: connection closed mid-receive")
	ErrIDOverflow                 = errors.New("channel: message id counter overflowed")
	ErrPendingOccupied            = errors.New("channel: peer sent a second msg before the first was received")
)
