package serializer

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dIPC/rpc/common"
)

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Name returns the name the serializer is selected by (e.g. "binary")
	Name() string
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message.
	// Fields of msg that are absent in b are reset to their zero value.
	// It returns an error if any
	Deserialize(b []byte, msg *common.Message) error
}

// constructors of all serializers by name
var constructors = map[string]func() IRPCSerializer{
	"json":   NewJSONSerializer,
	"gob":    NewGOBSerializer,
	"binary": NewBinarySerializer,
	"cbor":   NewCBORSerializer,
}

// Names lists the names accepted by New
func Names() []string {
	return []string{"json", "gob", "binary", "cbor"}
}

// New creates the serializer with the given name
func New(name string) (IRPCSerializer, error) {
	constructor, ok := constructors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("invalid serializer %s (expected one of: %s)", name, strings.Join(Names(), ", "))
	}
	return constructor(), nil
}
