package shim

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"graft/internal/source"
)

// Command is one pushed unit of foreign code: the reprinted text of a
// top-level form plus the host span it was generated from.
type Command struct {
	Text   string
	Origin source.Span
}

// Buffer accumulates the foreign-code document for one environment.
// Text is append-only; every pushed command starts at a mapped offset.
type Buffer struct {
	cmds []Command
	text strings.Builder
	pmap PositionMap
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Push appends a command to the buffer: records a mark at the current end
// offset pointing at origin, then appends text and a terminating newline.
// Mark and text land together or not at all.
func (b *Buffer) Push(text string, origin source.Span) error {
	off := b.EndOffset()
	if err := b.pmap.Record(off, origin); err != nil {
		return err
	}
	b.cmds = append(b.cmds, Command{Text: text, Origin: origin})
	b.text.WriteString(text)
	b.text.WriteByte('\n')
	return nil
}

// EndOffset returns the byte offset one past the accumulated text.
// The next Push lands exactly here.
func (b *Buffer) EndOffset() uint32 {
	off, err := safecast.Conv[uint32](b.text.Len())
	if err != nil {
		panic(fmt.Errorf("shim buffer overflow: %w", err))
	}
	return off
}

// Text returns the accumulated foreign-code document.
func (b *Buffer) Text() string {
	return b.text.String()
}

// Map returns the buffer's position map.
func (b *Buffer) Map() *PositionMap {
	return &b.pmap
}

// Len returns the number of pushed commands.
func (b *Buffer) Len() int {
	return len(b.cmds)
}

// Commands возвращает read-only slice команд.
func (b *Buffer) Commands() []Command {
	return b.cmds
}
