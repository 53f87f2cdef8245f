// Package serializer provides envelope serialization for the kRPC system. It
// defines a common interface and implementations for converting request and
// reply envelopes to and from the bytes published on the broker.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: UTF-8 JSON encoding. This is the wire format of the
//     reference deployment and the only one other languages can consume, so it
//     is the default.
//
//   - gobSerializerImpl: Go's gob encoding. Smaller messages, but only usable
//     when every producer and consumer on the topics is a kRPC process
//     configured with the same serializer.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewJSONSerializer()
//	data, err := s.Serialize(common.NewRequestEnvelope(id, replyTo, payload))
//	// ... publish data ...
//	var reply common.ReplyEnvelope
//	err = s.Deserialize(receivedData, &reply)
package serializer
