package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dIPC/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasHandle  uint16 = 1 << 0
	hasSlot    uint16 = 1 << 1
	hasValue   uint16 = 1 << 2
	hasMaxLen  uint16 = 1 << 3
	hasKind    uint16 = 1 << 4
	hasEnabled uint16 = 1 << 5
	hasWaitMs  uint16 = 1 << 6
	hasN       uint16 = 1 << 7
	hasCode    uint16 = 1 << 8
	hasErr     uint16 = 1 << 9
	hasCall    uint16 = 1 << 10
)

// headerSize is 1 byte for MsgType + 2 bytes for flags
const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Name() string {
	return "binary"
}

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags uint16 = 0
	pos := headerSize

	if msg.Handle > 0 {
		flags |= hasHandle
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.Handle)
		pos += 8
	}

	if msg.Slot > 0 {
		flags |= hasSlot
		binary.BigEndian.PutUint32(result[pos:pos+4], msg.Slot)
		pos += 4
	}

	// Handle Value, an empty but non nil value is kept
	if msg.Value != nil {
		flags |= hasValue
		valueLen := len(msg.Value)

		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(valueLen))
		pos += 4

		copy(result[pos:pos+valueLen], msg.Value)
		pos += valueLen
	}

	if msg.MaxLen > 0 {
		flags |= hasMaxLen
		binary.BigEndian.PutUint32(result[pos:pos+4], msg.MaxLen)
		pos += 4
	}

	if msg.Kind > 0 {
		flags |= hasKind
		binary.BigEndian.PutUint32(result[pos:pos+4], msg.Kind)
		pos += 4
	}

	// Enabled is carried by its flag alone
	if msg.Enabled {
		flags |= hasEnabled
	}

	if msg.WaitMs != 0 {
		flags |= hasWaitMs
		binary.BigEndian.PutUint64(result[pos:pos+8], uint64(msg.WaitMs))
		pos += 8
	}

	if msg.N > 0 {
		flags |= hasN
		binary.BigEndian.PutUint32(result[pos:pos+4], msg.N)
		pos += 4
	}

	if msg.Code > 0 {
		flags |= hasCode
		result[pos] = msg.Code
		pos += 1
	}

	if msg.Err != "" {
		flags |= hasErr
		errLen := len(msg.Err)

		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(errLen))
		pos += 4

		copy(result[pos:pos+errLen], msg.Err)
		pos += errLen
	}

	if msg.Call > 0 {
		flags |= hasCall
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.Call)
		pos += 8
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:3], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := binary.BigEndian.Uint16(data[1:3])
	pos := headerSize

	// need checks that n more bytes are available
	need := func(n int, field string) error {
		if pos+n > len(data) {
			return fmt.Errorf("data too short for %s", field)
		}
		return nil
	}

	msg.Handle = 0
	if flags&hasHandle != 0 {
		if err := need(8, "handle"); err != nil {
			return err
		}
		msg.Handle = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	}

	msg.Slot = 0
	if flags&hasSlot != 0 {
		if err := need(4, "slot"); err != nil {
			return err
		}
		msg.Slot = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}

	if flags&hasValue != 0 {
		if err := need(4, "value length"); err != nil {
			return err
		}
		valueLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		if err := need(valueLen, "value data"); err != nil {
			return err
		}

		// create an empty slice (not nil) if length is 0
		// Allocate only if needed
		if msg.Value == nil || cap(msg.Value) < valueLen {
			msg.Value = make([]byte, valueLen)
		} else {
			msg.Value = msg.Value[:valueLen]
		}
		copy(msg.Value, data[pos:pos+valueLen])
		pos += valueLen
	} else {
		msg.Value = nil
	}

	msg.MaxLen = 0
	if flags&hasMaxLen != 0 {
		if err := need(4, "max length"); err != nil {
			return err
		}
		msg.MaxLen = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}

	msg.Kind = 0
	if flags&hasKind != 0 {
		if err := need(4, "kind"); err != nil {
			return err
		}
		msg.Kind = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}

	msg.Enabled = flags&hasEnabled != 0

	msg.WaitMs = 0
	if flags&hasWaitMs != 0 {
		if err := need(8, "wait time"); err != nil {
			return err
		}
		msg.WaitMs = int64(binary.BigEndian.Uint64(data[pos : pos+8]))
		pos += 8
	}

	msg.N = 0
	if flags&hasN != 0 {
		if err := need(4, "byte count"); err != nil {
			return err
		}
		msg.N = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}

	msg.Code = 0
	if flags&hasCode != 0 {
		if err := need(1, "code"); err != nil {
			return err
		}
		msg.Code = data[pos]
		pos += 1
	}

	msg.Err = ""
	if flags&hasErr != 0 {
		if err := need(4, "error length"); err != nil {
			return err
		}
		errLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		if err := need(errLen, "error data"); err != nil {
			return err
		}
		msg.Err = string(data[pos : pos+errLen])
		pos += errLen
	}

	msg.Call = 0
	if flags&hasCall != 0 {
		if err := need(8, "call"); err != nil {
			return err
		}
		msg.Call = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	if msg.Handle > 0 {
		size += 8 // uint64
	}
	if msg.Slot > 0 {
		size += 4 // uint32
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value) // 4 bytes for length + value bytes
	}
	if msg.MaxLen > 0 {
		size += 4
	}
	if msg.Kind > 0 {
		size += 4
	}
	if msg.WaitMs != 0 {
		size += 8
	}
	if msg.N > 0 {
		size += 4
	}
	if msg.Code > 0 {
		size += 1
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err) // 4 bytes for length + error string
	}
	if msg.Call > 0 {
		size += 8
	}

	return size
}
