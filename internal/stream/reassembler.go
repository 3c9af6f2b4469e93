// Package stream turns a raw chunked response body into typed protocol
// events: bytes → complete lines (Reassembler) → events (Decode).
package stream

import (
	"strings"
	"unicode/utf8"
)

// Reassembler collects raw byte chunks from a streaming response body and
// splits them into complete lines. Chunk boundaries are arbitrary: a chunk
// may end mid-line or mid-rune, so the reassembler keeps both an undecoded
// byte tail and a pending partial line between calls.
type Reassembler struct {
	tail    []byte // trailing bytes that do not yet form a complete rune
	pending string // decoded text after the last newline
}

// NewReassembler returns a fresh reassembler. State is per stream session;
// do not reuse one across sessions.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends a chunk and returns all newly completed lines, in order.
// The segment after the last newline is retained for the next call.
// Returned lines may be empty; callers filter blanks.
func (r *Reassembler) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}

	buf := chunk
	if len(r.tail) > 0 {
		buf = append(r.tail, chunk...)
		r.tail = nil
	}

	// Hold back a trailing partial rune so a multi-byte character split
	// across chunks is never decoded as garbage.
	cut := completeRuneLen(buf)
	if cut < len(buf) {
		r.tail = append([]byte(nil), buf[cut:]...)
		buf = buf[:cut]
	}
	if len(buf) == 0 {
		return nil
	}

	segments := strings.Split(r.pending+string(buf), "\n")
	r.pending = segments[len(segments)-1]
	return segments[:len(segments)-1]
}

// Flush returns the pending partial line, if any. Called once when the
// transport signals EOF; any held-back rune bytes are emitted as-is.
func (r *Reassembler) Flush() (string, bool) {
	if len(r.tail) > 0 {
		r.pending += string(r.tail)
		r.tail = nil
	}
	if r.pending == "" {
		return "", false
	}
	line := r.pending
	r.pending = ""
	return line, true
}

// completeRuneLen returns the length of the longest prefix of b that ends
// on a rune boundary. Invalid bytes count as complete (utf8.RuneError on
// decode, same as a one-shot string conversion would produce).
func completeRuneLen(b []byte) int {
	n := len(b)
	// Only the last rune can be incomplete; scan back at most utf8.UTFMax.
	lo := n - utf8.UTFMax
	if lo < 0 {
		lo = 0
	}
	for i := n - 1; i >= lo; i-- {
		if utf8.RuneStart(b[i]) {
			if r, size := utf8.DecodeRune(b[i:]); r == utf8.RuneError && size == 1 && !utf8.FullRune(b[i:]) {
				return i // incomplete trailing sequence, hold it back
			}
			return n
		}
	}
	return n
}
