package serializer

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/ValentinKolb/kRPC/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON": NewJSONSerializer,
	"GOB":  NewGOBSerializer,
}

var testTime = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

// testReplies creates a set of reply envelopes with different fields filled
func testReplies() []common.ReplyEnvelope {
	errMsg := "User not found"
	return []common.ReplyEnvelope{
		// success reply
		{CorrelationID: "c1", Data: json.RawMessage(`{"success":true,"userId":"u1"}`), ProcessedAt: testTime},

		// error reply
		{CorrelationID: "c2", Error: &errMsg, ProcessedAt: testTime},
	}
}

// TestRequestRoundTrip tests that request envelopes survive serialization
func TestRequestRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()

			req := common.RequestEnvelope{
				CorrelationID: "0123456789abcdef0123456789abcdef",
				ReplyTo:       common.DefaultReplyTopic,
				Data:          json.RawMessage(`{"operation":"LIST_USERS"}`),
				Timestamp:     testTime,
			}

			data, err := s.Serialize(req)
			if err != nil {
				t.Fatalf("Failed to serialize request: %v", err)
			}

			var result common.RequestEnvelope
			if err := s.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize request: %v", err)
			}

			if result.CorrelationID != req.CorrelationID || result.ReplyTo != req.ReplyTo {
				t.Errorf("Header doesn't match after round trip:\nOriginal: %+v\nResult: %+v", req, result)
			}
			if !bytes.Equal(result.Data, req.Data) {
				t.Errorf("Data doesn't match after round trip: %s != %s", result.Data, req.Data)
			}
			if !result.Timestamp.Equal(req.Timestamp) {
				t.Errorf("Timestamp doesn't match after round trip: %s != %s", result.Timestamp, req.Timestamp)
			}
		})
	}
}

// TestReplyRoundTrip tests that reply envelopes keep the data / error distinction
func TestReplyRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()

			for i, reply := range testReplies() {
				data, err := s.Serialize(reply)
				if err != nil {
					t.Errorf("Failed to serialize reply %d: %v", i, err)
					continue
				}

				var result common.ReplyEnvelope
				if err := s.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize reply %d: %v", i, err)
					continue
				}

				if result.CorrelationID != reply.CorrelationID {
					t.Errorf("Reply %d: correlation id %s != %s", i, result.CorrelationID, reply.CorrelationID)
				}
				if result.IsError() != reply.IsError() || result.ErrorMessage() != reply.ErrorMessage() {
					t.Errorf("Reply %d: error %q != %q", i, result.ErrorMessage(), reply.ErrorMessage())
				}
				if !reply.IsError() && !bytes.Equal(result.Data, reply.Data) {
					t.Errorf("Reply %d: data %s != %s", i, result.Data, reply.Data)
				}
			}
		})
	}
}

// TestInvalidData tests that malformed input is reported as error
func TestInvalidData(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()

			for _, data := range [][]byte{[]byte("not a message"), {0xff, 0x00, 0x13}} {
				var result common.ReplyEnvelope
				if err := s.Deserialize(data, &result); err == nil {
					t.Errorf("Expected error deserializing %q", data)
				}
			}
		})
	}
}

// TestNewSerializer tests serializer selection by name
func TestNewSerializer(t *testing.T) {
	for _, name := range []string{"", "json", "gob"} {
		if _, err := NewSerializer(name); err != nil {
			t.Errorf("NewSerializer(%q) failed: %v", name, err)
		}
	}
	if _, err := NewSerializer("binary"); err == nil {
		t.Errorf("NewSerializer should reject unknown serializers")
	}
}
