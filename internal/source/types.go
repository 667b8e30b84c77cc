package source

type (
	// FileID uniquely identifies a host source file within a FileSet.
	FileID uint32 // просто ID источника
	// FileFlags encodes metadata about a host source file.
	FileFlags uint8 // метаданные
)

const (
	// FileVirtual indicates the file was added from memory (repl, tests).
	FileVirtual FileFlags = 1 << iota // добавлен не с диска
	FileHadBOM
	FileNormalizedCRLF
)

// File captures metadata and content for a single host source file.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32
	Hash    [32]byte
	Flags   FileFlags
}

// LineCol represents a human-readable position in a source file.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}
