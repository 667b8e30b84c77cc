package testkit

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"graft/internal/shim"
)

// CheckBufferInvariants runs a minimal set of invariants on a shim buffer:
// 1) marks are sorted by shim offset, non-decreasing
// 2) every mark offset is within text bounds
// 3) marks and commands pair up one-to-one, offsets match the accumulated text
// 4) non-sentinel origins are non-degenerate and agree between mark and command
func CheckBufferInvariants(b *shim.Buffer) error {
	if b == nil {
		return fmt.Errorf("nil buffer")
	}
	text := b.Text()
	lenText, err := safecast.Conv[uint32](len(text))
	if err != nil {
		return fmt.Errorf("len text overflow: %w", err)
	}
	marks := b.Map().Marks()
	cmds := b.Commands()

	// 1) ordering; 2) bounds
	for i, mk := range marks {
		if i > 0 && mk.ShimStart < marks[i-1].ShimStart {
			return fmt.Errorf("mark %d out of order: %d after %d", i, mk.ShimStart, marks[i-1].ShimStart)
		}
		if mk.ShimStart > lenText {
			return fmt.Errorf("mark %d beyond text: %d > %d", i, mk.ShimStart, lenText)
		}
	}

	// 3) each command starts at its mark and contributes text plus newline
	if len(marks) != len(cmds) {
		return fmt.Errorf("marks/commands mismatch: %d marks, %d commands", len(marks), len(cmds))
	}
	var off uint32
	for i, cmd := range cmds {
		if marks[i].ShimStart != off {
			return fmt.Errorf("command %d starts at %d, mark says %d", i, off, marks[i].ShimStart)
		}
		lenCmd, err := safecast.Conv[uint32](len(cmd.Text) + 1)
		if err != nil {
			return fmt.Errorf("command %d length overflow: %w", i, err)
		}
		end := off + lenCmd
		if end > lenText {
			return fmt.Errorf("command %d overruns text: %d > %d", i, end, lenText)
		}
		if got := text[off : end-1]; got != cmd.Text {
			return fmt.Errorf("command %d text mismatch at %d: %q != %q", i, off, summarize(got), summarize(cmd.Text))
		}
		if text[end-1] != '\n' {
			return fmt.Errorf("command %d not newline-terminated at %d", i, end-1)
		}
		off = end
	}
	if off != lenText {
		return fmt.Errorf("commands cover %d bytes, text has %d", off, lenText)
	}

	// 4) origin sanity
	for i, cmd := range cmds {
		origin := cmd.Origin
		if origin != marks[i].Origin {
			return fmt.Errorf("command %d origin %v disagrees with mark %v", i, origin, marks[i].Origin)
		}
		if origin.IsZero() {
			continue
		}
		if origin.End < origin.Start {
			return fmt.Errorf("command %d origin is inverted: %v", i, origin)
		}
	}
	return nil
}

func summarize(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 32 {
		s = s[:32]
	}
	return s
}
