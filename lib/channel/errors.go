package channel

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dIPC/lib/transform"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by every channel operation. It wraps a
// return code and a message; errors.Is matches on the code only, so
// errors.Is(err, ErrInterrupted) holds for any interrupted call.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("channel error (%s): %s", e.Code, e.Msg)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new channel error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode classifies channel errors. The numeric values are stable since they
// travel over RPC.
type RetCode uint8

const (
	RetCOK              RetCode = iota // no error
	RetCChannelBusy                    // all endpoint slots are taken
	RetCInterrupted                    // a blocking wait was cancelled
	RetCInvalidControl                 // unknown transform kind
	RetCLengthOverflow                 // encoded length does not fit a frame header
	RetCFaultDuringCopy                // caller buffer could not take the data
	RetCMalformedFrame                 // a frame header announced an invalid length
	RetCClosed                         // the endpoint was closed
	RetCInvalidConfig                  // the channel configuration is invalid
	RetCInternal                       // anything else
)

// String returns the string representation of a RetCode.
func (c RetCode) String() string {
	switch c {
	case RetCOK:
		return "OK"
	case RetCChannelBusy:
		return "ChannelBusy"
	case RetCInterrupted:
		return "Interrupted"
	case RetCInvalidControl:
		return "InvalidControl"
	case RetCLengthOverflow:
		return "LengthOverflow"
	case RetCFaultDuringCopy:
		return "FaultDuringCopy"
	case RetCMalformedFrame:
		return "MalformedFrame"
	case RetCClosed:
		return "Closed"
	case RetCInvalidConfig:
		return "InvalidConfig"
	default:
		return "Internal"
	}
}

// Sentinel values for errors.Is
var (
	ErrChannelBusy     = NewError(RetCChannelBusy, "channel busy")
	ErrInterrupted     = NewError(RetCInterrupted, "interrupted")
	ErrInvalidControl  = NewError(RetCInvalidControl, "invalid control")
	ErrLengthOverflow  = NewError(RetCLengthOverflow, "length overflow")
	ErrFaultDuringCopy = NewError(RetCFaultDuringCopy, "fault during copy")
	ErrMalformedFrame  = NewError(RetCMalformedFrame, "malformed frame")
	ErrClosed          = NewError(RetCClosed, "endpoint closed")
	ErrInvalidConfig   = NewError(RetCInvalidConfig, "invalid config")
)

// CodeOf returns the return code carried by err. Errors that are not channel
// errors map to RetCInternal and nil maps to RetCOK.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, transform.ErrInvalidControl):
		return RetCInvalidControl
	case errors.Is(err, transform.ErrLengthOverflow):
		return RetCLengthOverflow
	}
	return RetCInternal
}

// fromTransform converts errors of the transform package into channel errors
func fromTransform(err error) error {
	if err == nil {
		return nil
	}
	return NewError(CodeOf(err), err.Error())
}
