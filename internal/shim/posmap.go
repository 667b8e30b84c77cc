package shim

import (
	"errors"
	"fmt"
	"sort"

	"graft/internal/source"
)

var (
	// ErrOrderingViolation reports a mark recorded before the previous one.
	ErrOrderingViolation = errors.New("shim marks must not decrease")
)

// Mark associates a shim offset with the host span the following text
// was generated from. Marks are valid from their ShimStart up to the
// next mark's ShimStart.
type Mark struct {
	ShimStart uint32
	Origin    source.Span
}

// PositionMap translates between shim offsets and host spans.
// Marks are append-only and sorted by ShimStart by construction.
type PositionMap struct {
	marks []Mark
}

// Record appends a mark. ShimStart must be >= the previous mark's
// ShimStart; equal offsets are allowed (пустая команда), и тогда
// последняя метка побеждает.
func (m *PositionMap) Record(shimStart uint32, origin source.Span) error {
	if n := len(m.marks); n > 0 && shimStart < m.marks[n-1].ShimStart {
		return fmt.Errorf("%w: %d after %d", ErrOrderingViolation, shimStart, m.marks[n-1].ShimStart)
	}
	m.marks = append(m.marks, Mark{ShimStart: shimStart, Origin: origin})
	return nil
}

// ShimToHost returns the host span attributed to the given shim offset:
// the origin of the last mark at or before the offset. Offsets before the
// first mark (and maps with no marks) get the zero span.
func (m *PositionMap) ShimToHost(offset uint32) source.Span {
	// Первая метка с ShimStart > offset; нужная — на позицию раньше.
	idx := sort.Search(len(m.marks), func(i int) bool {
		return m.marks[i].ShimStart > offset
	}) - 1
	if idx < 0 {
		return source.Span{}
	}
	return m.marks[idx].Origin
}

// HostToShim finds the shim offset generated from the given host position:
// the ShimStart of the first mark whose origin contains it. Zero-length
// origins match only their exact offset.
func (m *PositionMap) HostToShim(file source.FileID, offset uint32) (uint32, bool) {
	for i := range m.marks {
		origin := m.marks[i].Origin
		if origin.IsZero() || origin.File != file {
			continue
		}
		if origin.Start <= offset && (offset < origin.End || offset == origin.Start) {
			return m.marks[i].ShimStart, true
		}
	}
	return 0, false
}

// Len returns the number of recorded marks.
func (m *PositionMap) Len() int {
	return len(m.marks)
}

// Marks возвращает read-only slice меток (для инвариант-чекера).
func (m *PositionMap) Marks() []Mark {
	return m.marks
}
