// Package frame defines the bit layout of a transmission and the stateful
// assembler that recovers frames from a live symbol stream.
//
// A frame is PREAMBLE then PAYLOAD then TERMINATOR. The payload is the
// message bytes, each sent most-significant-bit first. Bits travel as one
// byte per bit with value 0 or 1; there is no bit packing.
package frame

import (
	"fmt"

	"github.com/soniclink/soniclink/pkg/modem"
)

var (
	// Preamble marks the start of a frame. The alternating pattern keeps
	// both tones exercised during synchronization.
	Preamble = []byte{1, 0, 1, 0, 1, 0, 1, 0}

	// Terminator marks the end of the payload. Eight consecutive ones can
	// never occur inside a printable payload: every printable byte starts
	// with a zero bit and carries at most six consecutive ones.
	Terminator = []byte{1, 1, 1, 1, 1, 1, 1, 1}
)

// EncodeText converts text to payload bits, MSB first. Characters that do
// not fit in a single byte cannot be carried on the link.
func EncodeText(text string) ([]byte, error) {
	bits := make([]byte, 0, len(text)*8)
	for _, r := range text {
		if r > 0xFF {
			return nil, fmt.Errorf("%w: character %q", modem.ErrInput, r)
		}
		bits = append(bits, byteToBits(byte(r))...)
	}
	return bits, nil
}

// Build produces the full frame bit sequence for text.
func Build(text string) ([]byte, error) {
	payload, err := EncodeText(text)
	if err != nil {
		return nil, err
	}
	bits := make([]byte, 0, len(Preamble)+len(payload)+len(Terminator))
	bits = append(bits, Preamble...)
	bits = append(bits, payload...)
	bits = append(bits, Terminator...)
	return bits, nil
}

func byteToBits(b byte) []byte {
	bits := make([]byte, 8)
	for i := 0; i < 8; i++ {
		bits[i] = (b >> (7 - i)) & 1
	}
	return bits
}

func bitsToByte(bits []byte) byte {
	var b byte
	for i := 0; i < 8; i++ {
		b = (b << 1) | (bits[i] & 1)
	}
	return b
}

// decodePayload turns payload bits into a string, truncating any trailing
// partial byte. It reports false if any decoded byte is not printable ASCII.
func decodePayload(bits []byte) (string, bool) {
	n := len(bits) - len(bits)%8
	out := make([]byte, 0, n/8)
	for i := 0; i < n; i += 8 {
		b := bitsToByte(bits[i : i+8])
		if !printable(b) {
			return "", false
		}
		out = append(out, b)
	}
	return string(out), true
}

func printable(b byte) bool {
	return b >= 0x20 && b <= 0x7E
}

// indexOf returns the offset of the first occurrence of pattern in bits,
// or -1 if absent.
func indexOf(bits, pattern []byte) int {
	if len(pattern) == 0 || len(bits) < len(pattern) {
		return -1
	}
	for i := 0; i+len(pattern) <= len(bits); i++ {
		match := true
		for j := range pattern {
			if bits[i+j] != pattern[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
