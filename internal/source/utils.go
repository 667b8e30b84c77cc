package source

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"

	"fortio.org/safecast"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// removeBOM удаляет UTF-8 BOM из начала содержимого, если он есть.
func removeBOM(content []byte) ([]byte, bool) {
	if bytes.HasPrefix(content, utf8BOM) {
		return content[len(utf8BOM):], true
	}
	return content, false
}

// normalizeCRLF заменяет все CRLF на LF.
func normalizeCRLF(content []byte) ([]byte, bool) {
	if !bytes.Contains(content, []byte("\r\n")) {
		return content, false
	}
	return bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n")), true
}

// buildLineIndex строит индекс позиций всех '\n' в содержимом.
// LineIdx[i] — байтовая позиция i-го перевода строки.
func buildLineIndex(content []byte) []uint32 {
	var lineIdx []uint32
	for i, b := range content {
		if b == '\n' {
			pos, err := safecast.Conv[uint32](i)
			if err != nil {
				panic(fmt.Errorf("line position overflow: %w", err))
			}
			lineIdx = append(lineIdx, pos)
		}
	}
	return lineIdx
}

// toLineCol converts a byte offset into a 1-based line/column position
// using the precomputed newline index.
func toLineCol(lineIdx []uint32, offset uint32) LineCol {
	// Бинарный поиск первой позиции '\n' >= offset
	line := sort.Search(len(lineIdx), func(i int) bool {
		return lineIdx[i] >= offset
	})

	var lineStart uint32
	if line > 0 {
		lineStart = lineIdx[line-1] + 1
	}

	lineNum, err := safecast.Conv[uint32](line + 1)
	if err != nil {
		panic(fmt.Errorf("line number overflow: %w", err))
	}
	return LineCol{
		Line: lineNum,
		Col:  offset - lineStart + 1,
	}
}

// normalizePath приводит путь к канонической форме (слэши, Clean).
func normalizePath(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
