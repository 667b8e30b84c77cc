package driver

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"graft/internal/ast"
	"graft/internal/diag"
	"graft/internal/source"
)

const (
	// DumpExt is the extension host frontends give elaboration dumps.
	DumpExt = ".graft"

	dumpVersion uint16 = 1
)

// DumpError describes one unreadable dump, carrying the diagnostic code
// the caller renders it under.
type DumpError struct {
	Path string
	Code diag.Code
	Msg  string
}

func (e *DumpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// Дамп элаборации: хостовый файл плюс дерево команд с их спанами.
type dumpFile struct {
	Version  uint16   `msgpack:"version"`
	HostPath string   `msgpack:"host_path"`
	HostText string   `msgpack:"host_text"`
	Root     dumpNode `msgpack:"root"`
}

type dumpNode struct {
	Kind     string     `msgpack:"kind"`
	Text     string     `msgpack:"text,omitempty"`
	Start    uint32     `msgpack:"start"`
	End      uint32     `msgpack:"end"`
	Children []dumpNode `msgpack:"children,omitempty"`
}

// LoadDump reads one elaboration dump: registers the host file it was
// produced from and rebuilds the command tree with spans pointing into
// that file.
func LoadDump(fs *source.FileSet, path string) (*ast.Node, source.FileID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, &DumpError{Path: path, Code: diag.IOLoadFileError,
			Msg: fmt.Sprintf("failed to read dump: %v", err)}
	}
	var df dumpFile
	if err := msgpack.Unmarshal(data, &df); err != nil {
		return nil, 0, &DumpError{Path: path, Code: diag.IODumpDecodeError,
			Msg: fmt.Sprintf("malformed elaboration dump: %v", err)}
	}
	if df.Version != dumpVersion {
		return nil, 0, &DumpError{Path: path, Code: diag.IODumpVersionError,
			Msg: fmt.Sprintf("dump version %d, this build reads version %d", df.Version, dumpVersion)}
	}
	if df.HostPath == "" {
		return nil, 0, &DumpError{Path: path, Code: diag.IODumpDecodeError,
			Msg: "dump carries no host path"}
	}
	id := fs.Add(df.HostPath, []byte(df.HostText), 0)
	return buildNode(&df.Root, id), id, nil
}

func buildNode(d *dumpNode, file source.FileID) *ast.Node {
	n := &ast.Node{
		Kind: ast.Kind(d.Kind),
		Text: d.Text,
		Span: source.Span{File: file, Start: d.Start, End: d.End},
	}
	if len(d.Children) > 0 {
		n.Children = make([]*ast.Node, len(d.Children))
		for i := range d.Children {
			n.Children[i] = buildNode(&d.Children[i], file)
		}
	}
	return n
}

// WriteDump serializes a host tree into dump form. The inverse of
// LoadDump; frontend tooling and tests build fixtures through it.
func WriteDump(path, hostPath, hostText string, root *ast.Node) error {
	df := dumpFile{
		Version:  dumpVersion,
		HostPath: hostPath,
		HostText: hostText,
		Root:     *flattenNode(root),
	}
	data, err := msgpack.Marshal(&df)
	if err != nil {
		return fmt.Errorf("encode dump: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func flattenNode(n *ast.Node) *dumpNode {
	d := &dumpNode{
		Kind:  string(n.Kind),
		Text:  n.Text,
		Start: n.Span.Start,
		End:   n.Span.End,
	}
	if len(n.Children) > 0 {
		d.Children = make([]dumpNode, len(n.Children))
		for i, c := range n.Children {
			d.Children[i] = *flattenNode(c)
		}
	}
	return d
}
