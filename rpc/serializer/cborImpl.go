package serializer

import (
	"github.com/ValentinKolb/dIPC/rpc/common"
	"github.com/fxamacker/cbor/v2"
)

// NewCBORSerializer creates a new serializer using CBOR (RFC 8949) with
// core deterministic encoding
func NewCBORSerializer() IRPCSerializer {
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("serializer: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("serializer: CBOR decoder initialization failed: " + err.Error())
	}
	return &cborSerializerImpl{
		encMode: encMode,
		decMode: decMode,
	}
}

// cborSerializerImpl implements the IRPCSerializer interface using CBOR encoding
type cborSerializerImpl struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (c cborSerializerImpl) Name() string {
	return "cbor"
}

func (c cborSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return c.encMode.Marshal(msg)
}

func (c cborSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	*msg = common.Message{}
	return c.decMode.Unmarshal(b, msg)
}
