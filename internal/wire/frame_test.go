package wire

import (
	"encoding/json"
	"testing"
)

func TestFrameMsgRoundTrip(t *testing.T) {
	f := NewMsgFrame(42, json.RawMessage(`{"x":1}`))
	encoded, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Frame
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != FrameMsg || decoded.MsgID != 42 || string(decoded.Val) != `{"x":1}` {
		t.Fatalf("got %+v", decoded)
	}
}

func TestFrameAckRoundTrip(t *testing.T) {
	f := NewAckFrame(7)
	encoded, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(encoded) != `{"type":"ack","data":7}` {
		t.Fatalf("got %s", encoded)
	}

	var decoded Frame
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != FrameAck || decoded.AckID != 7 {
		t.Fatalf("got %+v", decoded)
	}
}

func TestFrameUnknownTypeRejected(t *testing.T) {
	var f Frame
	err := json.Unmarshal([]byte(`{"type":"ping","data":null}`), &f)
	if err == nil {
		t.Fatal("expected an error for an unknown frame type")
	}
}
