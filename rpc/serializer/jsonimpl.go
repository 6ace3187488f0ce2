package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/dIPC/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// Message types are encoded by name, values as base64 strings.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Name() string {
	return "json"
}

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// omitted fields would keep their old values otherwise
	*msg = common.Message{}
	return json.Unmarshal(b, msg)
}
