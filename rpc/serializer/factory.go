package serializer

import "fmt"

// NewSerializer creates a serializer by name (json, gob)
func NewSerializer(name string) (IRPCSerializer, error) {
	switch name {
	case "", "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s (expected json or gob)", name)
	}
}
