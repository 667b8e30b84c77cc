package lsp

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Session owns the virtual shim document for one check run: the document
// version counter and the slot the receive goroutine publishes into.
type Session struct {
	tool    *Tool
	uri     string
	langID  string
	version int

	mu    sync.Mutex
	diags []Diagnostic
}

// NewSession creates a session over the started tool.
func NewSession(tool *Tool) *Session {
	langID := tool.cfg.LanguageID
	if langID == "" {
		langID = "c"
	}
	return &Session{tool: tool, uri: ShimDocURI, langID: langID}
}

// URI returns the virtual document URI diagnostics are attributed to.
func (s *Session) URI() string {
	return s.uri
}

// Collect runs one diagnostics round over the accumulated document text.
//
// The round opens a fresh version of the virtual document, waits for the
// tool's file status to settle on "idle" for it, and returns the latest
// diagnostics published for that version. Publishes for other documents
// or older versions are ignored. Handlers and the document are torn down
// on every path out.
//
// On ErrCollectTimeout the returned slice still holds whatever the tool
// managed to publish before the deadline; callers should degrade, not
// abort.
func (s *Session) Collect(ctx context.Context, text string, timeout time.Duration) ([]Diagnostic, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	s.version++
	version := s.version

	s.mu.Lock()
	s.diags = nil
	s.mu.Unlock()

	idle := newOneshot()

	removePublish := s.tool.Handle("textDocument/publishDiagnostics", func(raw json.RawMessage) {
		var params publishDiagnosticsParams
		if err := json.Unmarshal(raw, &params); err != nil {
			s.tool.malformed.Add(1)
			return
		}
		if params.URI != s.uri {
			return
		}
		if params.Version != 0 && params.Version != version {
			// Публикация для устаревшей версии документа
			return
		}
		s.mu.Lock()
		s.diags = params.Diagnostics
		s.mu.Unlock()
	})
	defer removePublish()

	removeStatus := s.tool.Handle("textDocument/clangd.fileStatus", func(raw json.RawMessage) {
		var params fileStatusParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return
		}
		if params.URI == s.uri && params.State == fileStatusIdle {
			idle.Resolve()
		}
	})
	defer removeStatus()

	if err := s.tool.Notify("textDocument/didOpen", didOpenTextDocumentParams{
		TextDocument: textDocumentItem{
			URI:        s.uri,
			LanguageID: s.langID,
			Version:    version,
			Text:       text,
		},
	}); err != nil {
		return nil, err
	}
	defer func() {
		_ = s.tool.Notify("textDocument/didClose", didCloseTextDocumentParams{
			TextDocument: textDocumentIdentifier{URI: s.uri},
		})
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-idle.Done():
		return s.snapshot(), nil
	case <-timer.C:
		return s.snapshot(), ErrCollectTimeout
	case <-s.tool.recvDone:
		return s.snapshot(), s.tool.readErr()
	case <-ctx.Done():
		return s.snapshot(), ctx.Err()
	}
}

func (s *Session) snapshot() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diags
}
