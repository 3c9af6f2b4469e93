package stream

import (
	"reflect"
	"testing"
)

// feedAll feeds the whole payload in chunks of the given sizes (cycling) and
// returns every line including the flushed remainder.
func feedAll(t *testing.T, payload []byte, sizes []int) []string {
	t.Helper()
	r := NewReassembler()
	var lines []string
	i, s := 0, 0
	for i < len(payload) {
		n := sizes[s%len(sizes)]
		s++
		if i+n > len(payload) {
			n = len(payload) - i
		}
		lines = append(lines, r.Feed(payload[i:i+n])...)
		i += n
	}
	if last, ok := r.Flush(); ok {
		lines = append(lines, last)
	}
	return lines
}

func TestFeedSplitsLines(t *testing.T) {
	r := NewReassembler()

	lines := r.Feed([]byte("alpha\nbeta\ngam"))
	if want := []string{"alpha", "beta"}; !reflect.DeepEqual(lines, want) {
		t.Fatalf("Feed() = %v, want %v", lines, want)
	}

	lines = r.Feed([]byte("ma\n"))
	if want := []string{"gamma"}; !reflect.DeepEqual(lines, want) {
		t.Fatalf("Feed() after partial = %v, want %v", lines, want)
	}

	if _, ok := r.Flush(); ok {
		t.Error("Flush() reported leftover content after clean newline")
	}
}

func TestSplitInvariance(t *testing.T) {
	payload := []byte("{\"type\":\"meta\",\"chat_id\":7}\n{\"type\":\"content\",\"text\":\"привет мир\"}\n\ntail without newline")

	want := feedAll(t, payload, []int{len(payload)})

	chunkings := [][]int{
		{1},
		{2},
		{3},
		{7},
		{1, 5, 2},
		{13, 1},
	}
	for _, sizes := range chunkings {
		got := feedAll(t, payload, sizes)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("chunk sizes %v: lines = %q, want %q", sizes, got, want)
		}
	}
}

func TestMultiByteRuneAcrossChunks(t *testing.T) {
	// "héllo→🌍" contains 2-, 3-, and 4-byte sequences.
	payload := []byte("héllo→🌍\n")
	for cut := 1; cut < len(payload); cut++ {
		r := NewReassembler()
		var lines []string
		lines = append(lines, r.Feed(payload[:cut])...)
		lines = append(lines, r.Feed(payload[cut:])...)
		if len(lines) != 1 || lines[0] != "héllo→🌍" {
			t.Errorf("cut at byte %d: lines = %q", cut, lines)
		}
	}
}

func TestFlushEmitsPartialLine(t *testing.T) {
	r := NewReassembler()
	r.Feed([]byte("no trailing newline"))
	line, ok := r.Flush()
	if !ok || line != "no trailing newline" {
		t.Fatalf("Flush() = %q, %v", line, ok)
	}
	if _, ok := r.Flush(); ok {
		t.Error("second Flush() should report nothing")
	}
}

func TestFlushReleasesHeldRuneBytes(t *testing.T) {
	r := NewReassembler()
	payload := []byte("é")
	r.Feed(payload[:1]) // first byte of a 2-byte rune, held back
	line, ok := r.Flush()
	if !ok || line != string(payload[:1]) {
		t.Fatalf("Flush() = %q, %v, want the raw held byte", line, ok)
	}
}

func TestEmptyLinesPreserved(t *testing.T) {
	r := NewReassembler()
	lines := r.Feed([]byte("\n\na\n"))
	if want := []string{"", "", "a"}; !reflect.DeepEqual(lines, want) {
		t.Fatalf("Feed() = %q, want %q", lines, want)
	}
}
