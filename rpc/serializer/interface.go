package serializer

// IRPCSerializer is the interface for all envelope serializers
type IRPCSerializer interface {
	// Name returns the name of the serializer (e.g. "json")
	Name() string
	// Serialize serializes an envelope (common.RequestEnvelope or
	// common.ReplyEnvelope) into a byte array
	Serialize(envelope any) ([]byte, error)
	// Deserialize deserializes a byte array into the envelope pointed to by
	// envelope. It returns an error if the data is malformed.
	Deserialize(b []byte, envelope any) error
}
