package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dIPC/lib/channel"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Handle  uint64 `json:"handle,omitempty"`  // Used for: Close, Write, Read, SetTransform (request), Open (response)
	Slot    uint32 `json:"slot,omitempty"`    // Used for: Open (response)
	Value   []byte `json:"value,omitempty"`   // Used for: Write (request), Read and Info (response)
	MaxLen  uint32 `json:"maxLen,omitempty"`  // Used for: Read (request)
	Kind    uint32 `json:"kind,omitempty"`    // Used for: SetTransform (request)
	Enabled bool   `json:"enabled,omitempty"` // Used for: SetTransform (request)
	WaitMs  int64  `json:"waitMs,omitempty"`  // Used for: Write, Read (request), 0 waits without bound
	Call    uint64 `json:"call,omitempty"`    // Used for: Write, Read, Cancel (request), chosen by the client

	// Response only fields
	N    uint32 `json:"n,omitempty"`    // Used for: Write, Read responses
	Code uint8  `json:"code,omitempty"` // channel.RetCode of the error, 0 if none
	Err  string `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message
}

// AsError reconstructs the channel error carried by a response, nil if none
func (m *Message) AsError() error {
	if m.Code == uint8(channel.RetCOK) && m.Err == "" {
		return nil
	}
	code := channel.RetCode(m.Code)
	if code == channel.RetCOK {
		code = channel.RetCInternal
	}
	return channel.NewError(code, m.Err)
}

// setErr stores err and its return code in the message
func (m *Message) setErr(err error) *Message {
	if err != nil {
		m.Code = uint8(channel.CodeOf(err))
		m.Err = err.Error()
	}
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewOpenRequest creates a new Open request
func NewOpenRequest() *Message {
	return &Message{
		MsgType: MsgTOpen,
	}
}

// NewOpenResponse creates a new Open response
func NewOpenResponse(handle uint64, slot int, err error) *Message {
	msg := &Message{
		MsgType: MsgTOpen,
		Handle:  handle,
		Slot:    uint32(slot),
	}
	return msg.setErr(err)
}

// NewCloseRequest creates a new Close request
func NewCloseRequest(handle uint64) *Message {
	return &Message{
		MsgType: MsgTClose,
		Handle:  handle,
	}
}

// NewCloseResponse creates a new Close response
func NewCloseResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTClose,
	}
	return msg.setErr(err)
}

// NewWriteRequest creates a new Write request
func NewWriteRequest(handle uint64, value []byte, waitMs int64) *Message {
	return &Message{
		MsgType: MsgTWrite,
		Handle:  handle,
		Value:   value,
		WaitMs:  waitMs,
	}
}

// NewWriteResponse creates a new Write response
func NewWriteResponse(n int, err error) *Message {
	msg := &Message{
		MsgType: MsgTWrite,
		N:       uint32(n),
	}
	return msg.setErr(err)
}

// NewReadRequest creates a new Read request
func NewReadRequest(handle uint64, maxLen uint32, waitMs int64) *Message {
	return &Message{
		MsgType: MsgTRead,
		Handle:  handle,
		MaxLen:  maxLen,
		WaitMs:  waitMs,
	}
}

// NewReadResponse creates a new Read response
func NewReadResponse(value []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTRead,
		Value:   value,
		N:       uint32(len(value)),
	}
	return msg.setErr(err)
}

// NewSetTransformRequest creates a new SetTransform request
func NewSetTransformRequest(handle uint64, kind uint32, enabled bool) *Message {
	return &Message{
		MsgType: MsgTSetTransform,
		Handle:  handle,
		Kind:    kind,
		Enabled: enabled,
	}
}

// NewSetTransformResponse creates a new SetTransform response
func NewSetTransformResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTSetTransform,
	}
	return msg.setErr(err)
}

// NewCancelRequest creates a new Cancel request. It interrupts the pending
// Write or Read that was sent on handle with the same call id.
func NewCancelRequest(handle, call uint64) *Message {
	return &Message{
		MsgType: MsgTCancel,
		Handle:  handle,
		Call:    call,
	}
}

// NewCancelResponse creates a new Cancel response
func NewCancelResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTCancel,
	}
	return msg.setErr(err)
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTInfo,
	}
}

// NewInfoResponse creates a new Info response, the info is JSON encoded
func NewInfoResponse(info channel.ChannelInfo, err error) *Message {
	msg := &Message{
		MsgType: MsgTInfo,
	}
	if err == nil {
		msg.Value, err = json.Marshal(info)
	}
	return msg.setErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(code channel.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    uint8(code),
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTOpen:
		return "open"
	case MsgTClose:
		return "close"
	case MsgTWrite:
		return "write"
	case MsgTRead:
		return "read"
	case MsgTSetTransform:
		return "setTransform"
	case MsgTCancel:
		return "cancel"
	case MsgTInfo:
		return "info"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "open":
		*t = MsgTOpen
	case "close":
		*t = MsgTClose
	case "write":
		*t = MsgTWrite
	case "read":
		*t = MsgTRead
	case "setTransform":
		*t = MsgTSetTransform
	case "cancel":
		*t = MsgTCancel
	case "info":
		*t = MsgTInfo
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IChannel operations

	MsgTOpen // Open an endpoint
	MsgTInfo // Channel snapshot

	// IEndpoint operations

	MsgTClose        // Close an endpoint
	MsgTWrite        // Write one frame
	MsgTRead         // Read from the current frame
	MsgTSetTransform // Enable or disable a filter
	MsgTCancel       // Interrupt a pending Write or Read
)
