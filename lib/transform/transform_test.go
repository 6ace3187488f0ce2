package transform

import (
	"bytes"
	"encoding/base64"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/ValentinKolb/dIPC/lib/framing"
)

// TestApply checks the documented transform scenarios
func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		flags Flags
		input string
		want  string
	}{
		{"none", Flags{}, "shmowzow!", "shmowzow!"},
		{"rot13", Flags{Rot13: true}, "shmowzow!", "fuzbjmbj!"},
		{"reverse", Flags{Reverse: true}, "shmowzow!", "!wozwomhs"},
		{"base64", Flags{Base64: true}, "shmowzow!", "c2htb3d6b3ch"},
		{"reverse+rot13", Flags{Reverse: true, Rot13: true}, "shmowzow!", "!jbmjbzuf"},
		{"reverse+base64", Flags{Reverse: true, Base64: true}, "shmowzow!", "IXdvendvbWhz"},
		{"base64 one byte pad", Flags{Base64: true}, "a", "YQ=="},
		{"base64 two byte pad", Flags{Base64: true}, "ab", "YWI="},
		{"rot13 keeps non letters", Flags{Rot13: true}, "Hello, World 42", "Uryyb, Jbeyq 42"},
		{"empty", Flags{Rot13: true, Base64: true, Reverse: true}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.flags.Apply([]byte(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestRot13SelfInverse checks rot13(rot13(m)) == m for all printable ASCII
func TestRot13SelfInverse(t *testing.T) {
	for b := byte(0x20); b < 0x7f; b++ {
		if got := Rot13Byte(Rot13Byte(b)); got != b {
			t.Errorf("rot13 twice changed %q into %q", b, got)
		}
	}
}

// TestReverseSelfInverse checks reverse(reverse(m)) == m on random input
func TestReverseSelfInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	flags := Flags{Reverse: true}

	for i := 0; i < 50; i++ {
		msg := make([]byte, rng.Intn(100))
		rng.Read(msg)

		once, _ := flags.Apply(msg)
		twice, _ := flags.Apply(once)
		if !bytes.Equal(twice, msg) {
			t.Fatalf("reverse twice changed %x into %x", msg, twice)
		}
	}
}

// TestBase64RoundTrip checks decode(encode(m)) == m and the output length for all lengths up to 64
func TestBase64RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	flags := Flags{Base64: true}

	for n := 0; n <= 64; n++ {
		msg := make([]byte, n)
		rng.Read(msg)

		encoded, err := flags.Apply(msg)
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if len(encoded) != (n+2)/3*4 {
			t.Errorf("n=%d: expected length %d, got %d", n, (n+2)/3*4, len(encoded))
		}
		decoded, err := base64.StdEncoding.DecodeString(string(encoded))
		if err != nil {
			t.Fatalf("n=%d: decode failed: %v", n, err)
		}
		if !bytes.Equal(decoded, msg) {
			t.Errorf("n=%d: round trip mismatch", n)
		}
	}
}

// TestEncodeChunks checks the chunk size handed to the callback
func TestEncodeChunks(t *testing.T) {
	for _, flags := range []Flags{{}, {Base64: true}, {Rot13: true, Reverse: true}} {
		var chunks int
		err := flags.Encode([]byte("abcdefg"), func(chunk []byte) error {
			if len(chunk) != flags.ChunkSize() {
				t.Errorf("%s: expected chunk of %d, got %d", flags, flags.ChunkSize(), len(chunk))
			}
			chunks++
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		length, _ := flags.EncodedLength(7)
		if chunks*flags.ChunkSize() != int(length) {
			t.Errorf("%s: %d chunks do not cover %d bytes", flags, chunks, length)
		}
	}
}

// TestEncodeStopsOnError checks that an emit error aborts the encoding
func TestEncodeStopsOnError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := Flags{}.Encode([]byte("abc"), func([]byte) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("expected one call and the emit error, got %d calls and %v", calls, err)
	}
}

// TestEncodedLengthOverflow checks that oversized messages are rejected before encoding
func TestEncodedLengthOverflow(t *testing.T) {
	if _, err := (Flags{}).EncodedLength(framing.MaxFrameLength); err != nil {
		t.Errorf("plain message of MaxFrameLength should fit: %v", err)
	}

	// the largest input whose base64 form still fits
	fits := framing.MaxFrameLength / 4 * 3
	if _, err := (Flags{Base64: true}).EncodedLength(fits); err != nil {
		t.Errorf("base64 of %d bytes should fit: %v", fits, err)
	}
	_, err := (Flags{Base64: true}).EncodedLength(fits + 1)
	if !errors.Is(err, ErrLengthOverflow) {
		t.Errorf("expected ErrLengthOverflow, got %v", err)
	} else if limit := strconv.Itoa(framing.MaxFrameLength); !strings.Contains(err.Error(), limit) {
		t.Errorf("expected the limit %s in %q", limit, err)
	}
	if _, err := (Flags{}).EncodedLength(-1); !errors.Is(err, ErrLengthOverflow) {
		t.Errorf("expected ErrLengthOverflow for negative length, got %v", err)
	}
}

// TestFlagsSet checks toggling and invalid kinds
func TestFlagsSet(t *testing.T) {
	var f Flags
	for _, kind := range []Kind{Rot13, Base64, Reverse} {
		if err := f.Set(kind, true); err != nil {
			t.Fatalf("Set(%s): %v", kind, err)
		}
	}
	if f != (Flags{Rot13: true, Base64: true, Reverse: true}) {
		t.Errorf("unexpected flags %+v", f)
	}
	if err := f.Set(Rot13, false); err != nil || f.Rot13 {
		t.Errorf("expected rot13 to be disabled, got %+v (%v)", f, err)
	}
	if err := f.Set(Kind(0x99), true); !errors.Is(err, ErrInvalidControl) {
		t.Errorf("expected ErrInvalidControl, got %v", err)
	}
}

// TestParseKind checks the name mapping
func TestParseKind(t *testing.T) {
	for _, kind := range []Kind{Rot13, Base64, Reverse} {
		parsed, err := ParseKind(kind.String())
		if err != nil || parsed != kind {
			t.Errorf("ParseKind(%q) = %v, %v", kind.String(), parsed, err)
		}
	}
	if _, err := ParseKind("zip"); !errors.Is(err, ErrInvalidControl) {
		t.Errorf("expected ErrInvalidControl, got %v", err)
	}
}
