package transform

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dIPC/lib/framing"
)

var (
	// ErrInvalidControl is returned for an unknown transform kind
	ErrInvalidControl = errors.New("unknown transform kind")

	// ErrLengthOverflow is returned when the encoded length of a message does
	// not fit into a frame header
	ErrLengthOverflow = errors.New("encoded length exceeds the frame length limit")
)

// --------------------------------------------------------------------------
// Transform Kinds
// --------------------------------------------------------------------------

// Kind identifies one of the content filters
type Kind uint32

const (
	Rot13   Kind = 0x70 // rotate ASCII letters by 13
	Base64  Kind = 0x71 // expand groups of 3 bytes into 4 base64 symbols
	Reverse Kind = 0x72 // traverse the message from the last byte to the first
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case Rot13:
		return "rot13"
	case Base64:
		return "base64"
	case Reverse:
		return "reverse"
	default:
		return fmt.Sprintf("kind(%#x)", uint32(k))
	}
}

// ParseKind converts a name as returned by Kind.String back into a Kind
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rot13":
		return Rot13, nil
	case "base64":
		return Base64, nil
	case "reverse":
		return Reverse, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidControl, name)
	}
}

// --------------------------------------------------------------------------
// Flags
// --------------------------------------------------------------------------

// Flags is the set of filters enabled on one endpoint.
// The zero value applies no transform.
type Flags struct {
	Rot13   bool `json:"rot13"`
	Base64  bool `json:"base64"`
	Reverse bool `json:"reverse"`
}

// Set enables or disables the filter identified by kind
func (f *Flags) Set(kind Kind, enabled bool) error {
	switch kind {
	case Rot13:
		f.Rot13 = enabled
	case Base64:
		f.Base64 = enabled
	case Reverse:
		f.Reverse = enabled
	default:
		return fmt.Errorf("%w: %s", ErrInvalidControl, kind)
	}
	return nil
}

// ChunkSize returns how many bytes Encode emits per call of its callback
// (except for an empty message): 4 with base64 enabled, 1 otherwise.
func (f Flags) ChunkSize() int {
	if f.Base64 {
		return 4
	}
	return 1
}

// EncodedLength returns the length of the encoded form of an n byte message.
// It must be known before the frame header is written.
func (f Flags) EncodedLength(n int) (uint32, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: negative length %d", ErrLengthOverflow, n)
	}
	length := uint64(n)
	if f.Base64 {
		length = (length + 2) / 3 * 4
	}
	if !framing.ValidLength(length) {
		return 0, fmt.Errorf("%w: %d bytes encode to %d, the limit is %d", ErrLengthOverflow, n, length, framing.MaxFrameLength)
	}
	return uint32(length), nil
}

// String returns a short representation such as "rot13+reverse"
func (f Flags) String() string {
	var parts []string
	if f.Reverse {
		parts = append(parts, Reverse.String())
	}
	if f.Rot13 {
		parts = append(parts, Rot13.String())
	}
	if f.Base64 {
		parts = append(parts, Base64.String())
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode runs src through the enabled filters and hands the output to emit,
// one chunk at a time. The chunk slice is reused between calls and must not
// be retained. Encode stops at the first error returned by emit.
func (f Flags) Encode(src []byte, emit func(chunk []byte) error) error {
	var group [3]byte
	var out [4]byte
	filled := 0

	for i := range src {
		b := src[i]
		if f.Reverse {
			b = src[len(src)-1-i]
		}
		if f.Rot13 {
			b = Rot13Byte(b)
		}

		if !f.Base64 {
			out[0] = b
			if err := emit(out[:1]); err != nil {
				return err
			}
			continue
		}

		group[filled] = b
		filled++
		if filled == len(group) {
			base64.StdEncoding.Encode(out[:], group[:])
			if err := emit(out[:]); err != nil {
				return err
			}
			filled = 0
		}
	}

	if f.Base64 && filled > 0 {
		base64.StdEncoding.Encode(out[:], group[:filled])
		return emit(out[:])
	}
	return nil
}

// Apply encodes src in one piece and returns the complete output
func (f Flags) Apply(src []byte) ([]byte, error) {
	length, err := f.EncodedLength(len(src))
	if err != nil {
		return nil, err
	}
	dst := make([]byte, 0, length)
	err = f.Encode(src, func(chunk []byte) error {
		dst = append(dst, chunk...)
		return nil
	})
	return dst, err
}

// Rot13Byte rotates ASCII letters by 13 places and returns every other byte unchanged
func Rot13Byte(b byte) byte {
	switch {
	case b >= 'A' && b <= 'Z':
		return 'A' + (b-'A'+13)%26
	case b >= 'a' && b <= 'z':
		return 'a' + (b-'a'+13)%26
	default:
		return b
	}
}
