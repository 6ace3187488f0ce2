package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/dIPC/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
	"CBOR":   NewCBORSerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Open response
		{
			MsgType: common.MsgTOpen,
			Handle:  42,
			Slot:    1,
		},

		// Write request
		{
			MsgType: common.MsgTWrite,
			Handle:  7,
			Value:   []byte("shmowzow!"),
			WaitMs:  1500,
			Call:    11,
		},

		// Cancel request
		{
			MsgType: common.MsgTCancel,
			Handle:  7,
			Call:    11,
		},

		// Read request and response
		{
			MsgType: common.MsgTRead,
			Handle:  7,
			MaxLen:  64,
		},
		{
			MsgType: common.MsgTRead,
			Value:   []byte("fuzbjmbj!"),
			N:       9,
		},

		// SetTransform request
		{
			MsgType: common.MsgTSetTransform,
			Handle:  3,
			Kind:    0x71,
			Enabled: true,
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Code:    1,
			Err:     "channel busy",
		},

		// Message with all fields filled
		{
			MsgType: common.MsgTWrite,
			Handle:  1 << 40,
			Slot:    1,
			Value:   []byte("payload"),
			MaxLen:  4096,
			Kind:    0x72,
			Enabled: true,
			WaitMs:  250,
			N:       3,
			Code:    2,
			Err:     "interrupted",
			Call:    1 << 50,
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTCancel; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty value slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTWrite,
				Handle:  1,
				Value:   []byte{},
			},
		},
		{
			name: "Enabled without other fields",
			msg: common.Message{
				MsgType: common.MsgTSetTransform,
				Enabled: true,
			},
		},
		{
			name: "Negative wait time",
			msg: common.Message{
				MsgType: common.MsgTRead,
				WaitMs:  -1,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			err = serializer.Deserialize(data, &result)
			if err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// DeepEqual tells nil and empty slices apart, which the binary format keeps
			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Mismatch after round trip:\nOriginal: %+v\nResult: %+v", tc.msg, result)
			}
		})
	}
}

// TestDeserializeResetsFields tests that reusing a message does not leak old fields
func TestDeserializeResetsFields(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			result := common.Message{Handle: 9, Value: []byte("old"), Err: "old", Code: 3, Enabled: true, Call: 4}
			data, err := serializer.Serialize(common.Message{MsgType: common.MsgTSuccess})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if !reflect.DeepEqual(result, common.Message{MsgType: common.MsgTSuccess}) {
				t.Errorf("Expected all fields to be reset, got %+v", result)
			}
		})
	}
}

// TestNew tests the lookup of serializers by name
func TestNew(t *testing.T) {
	for _, name := range Names() {
		s, err := New(name)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("Expected serializer %q, got %q", name, s.Name())
		}
	}

	if s, err := New(" CBOR "); err != nil || s.Name() != "cbor" {
		t.Errorf("Expected names to be case insensitive, got %v, %v", s, err)
	}
	if _, err := New("xml"); err == nil {
		t.Errorf("Expected an error for an unknown serializer")
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Truncated call id",
			data:        []byte{9, 4, 0, 0, 0, 0, 0}, // Cancel claiming a call id with only 4 bytes
			expectError: true,
		},
		{
			name:        "Truncated handle",
			data:        []byte{1, 0, 1, 0, 0, 0}, // Claims a handle but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{1, 0, 4, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for error",
			data:        []byte{1, 2, 0, 0, 0, 0, 5, 'a'}, // Claims error length 5 but only 1 byte provided
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
