package display

import (
	"fmt"
	"io"

	"aster-cli/internal/stream"
)

// StreamPrinter consumes a chunked response body and prints content deltas
// to stdout as they arrive. It powers the one-shot ask path, where there is
// no TUI loop to drive rendering.
type StreamPrinter struct {
	out io.Writer

	accumulated string
	printedLen  int

	// Results surfaced to the caller after Run.
	ChatID  int64
	Balance *float64
}

func NewStreamPrinter(out io.Writer) *StreamPrinter {
	return &StreamPrinter{out: out}
}

// Run reads body to completion. It returns the full assistant text and the
// first error that interrupted the stream, if any. In-band error events are
// printed and do not abort the read.
func (p *StreamPrinter) Run(body io.Reader) (string, error) {
	re := stream.NewReassembler()
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range re.Feed(buf[:n]) {
				p.handleLine(line)
			}
		}
		if err != nil {
			if tail, ok := re.Flush(); ok {
				p.handleLine(tail)
			}
			if p.printedLen > 0 {
				fmt.Fprintln(p.out)
			}
			if err == io.EOF {
				return p.accumulated, nil
			}
			return p.accumulated, err
		}
	}
}

func (p *StreamPrinter) handleLine(line string) {
	ev, ok := stream.Decode(line)
	if !ok {
		return
	}
	switch ev.Type {
	case stream.EventContent:
		p.accumulated += ev.Text
		if len(p.accumulated) > p.printedLen {
			fmt.Fprint(p.out, p.accumulated[p.printedLen:])
			p.printedLen = len(p.accumulated)
		}
	case stream.EventMeta:
		if p.ChatID == 0 {
			p.ChatID = ev.ChatID
		}
	case stream.EventBalance:
		b := ev.Balance
		p.Balance = &b
	case stream.EventError:
		fmt.Fprintf(p.out, "\n%s[Error: %s]%s\n", Red, ev.Text, Reset)
	}
}
