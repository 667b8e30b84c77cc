package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"graft/internal/trace"
)

var (
	// ErrToolExited reports that the tool process died or closed its pipe.
	ErrToolExited = errors.New("tool exited")
	// ErrCollectTimeout reports a diagnostics round that did not settle in
	// time. The diagnostics returned alongside it are still usable.
	ErrCollectTimeout = errors.New("tool diagnostics timed out")
)

// Config describes how to start the external tool.
type Config struct {
	// Path is the tool executable. Defaults to "clangd".
	Path string
	Args []string
	// RootDir становится rootUri в initialize и рабочей директорией процесса.
	RootDir string
	// LanguageID is sent with didOpen. Defaults to "c".
	LanguageID string
	// HandshakeTimeout bounds the initialize round-trip. Defaults to 10s.
	HandshakeTimeout time.Duration
	// Tracer receives wire-level events (method names of sent and
	// received messages). Nil disables tracing.
	Tracer trace.Tracer
}

// NotificationHandler consumes one server notification's params.
// Handlers run on the receive goroutine and must not block.
type NotificationHandler func(params json.RawMessage)

// Tool is a JSON-RPC client over the stdio of a spawned language tool.
// One receive goroutine routes responses to waiting requests and
// notifications to registered handlers.
type Tool struct {
	cfg    Config
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	w      *bufio.Writer
	out    *bufio.Reader
	tracer trace.Tracer

	sendMu sync.Mutex

	mu       sync.Mutex
	nextID   int64
	pending  map[int64]chan *rpcMessage
	handlers map[string]NotificationHandler
	recvErr  error

	malformed atomic.Int64

	recvDone chan struct{}
	exited   chan struct{}
	waitErr  error
}

// Start spawns the tool, wires the receive loop and performs the
// initialize handshake. The context bounds the handshake only; the tool
// keeps running until Shutdown or Kill.
func Start(ctx context.Context, cfg Config) (*Tool, error) {
	if cfg.Path == "" {
		cfg.Path = "clangd"
	}
	if cfg.LanguageID == "" {
		cfg.LanguageID = "c"
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	cmd := exec.Command(cfg.Path, cfg.Args...)
	if cfg.RootDir != "" {
		cmd.Dir = cfg.RootDir
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Path, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Path, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Path, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Path, err)
	}

	t := newTool(stdin, stdout, cfg)
	t.cmd = cmd

	var pipes sync.WaitGroup
	pipes.Add(2)
	go func() {
		defer pipes.Done()
		t.receive()
	}()
	go func() {
		defer pipes.Done()
		t.drainStderr(stderr)
	}()
	go func() {
		// Wait только после того, как оба pipe-ридера закончили
		pipes.Wait()
		err := cmd.Wait()
		t.mu.Lock()
		t.waitErr = err
		t.mu.Unlock()
		close(t.exited)
	}()

	hctx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
	defer cancel()
	hs := trace.Begin(t.tracer, trace.ScopeTool, "tool:handshake", 0)
	if err := t.initialize(hctx); err != nil {
		hs.End("failed")
		t.Kill()
		return nil, fmt.Errorf("initialize %s: %w", cfg.Path, err)
	}
	hs.End("")
	return t, nil
}

// newTool wires a client over raw pipes. Tests drive it without a process;
// Start attaches the exec plumbing on top.
func newTool(stdin io.WriteCloser, stdout io.Reader, cfg Config) *Tool {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}
	return &Tool{
		cfg:      cfg,
		stdin:    stdin,
		w:        bufio.NewWriter(stdin),
		out:      bufio.NewReader(stdout),
		tracer:   tracer,
		pending:  make(map[int64]chan *rpcMessage),
		handlers: make(map[string]NotificationHandler),
		recvDone: make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

func (t *Tool) initialize(ctx context.Context) error {
	params := initializeParams{ProcessID: os.Getpid()}
	if t.cfg.RootDir != "" {
		params.RootURI = pathToURI(t.cfg.RootDir)
		params.WorkspaceFolders = []workspaceFolder{{
			URI:  params.RootURI,
			Name: filepath.Base(t.cfg.RootDir),
		}}
	}
	raw, err := t.Request(ctx, "initialize", params)
	if err != nil {
		return err
	}
	var result initializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("initialize result: %w", err)
	}
	Logger().Debug("tool initialized",
		zap.String("path", t.cfg.Path),
		zap.Int("capabilities_bytes", len(result.Capabilities)),
	)
	return t.Notify("initialized", struct{}{})
}

// receive routes tool output until the pipe dies. Responses complete
// pending requests, notifications go to handlers, server-to-client
// requests get an empty reply so the tool never stalls waiting on us.
func (t *Tool) receive() {
	defer close(t.recvDone)
	for {
		payload, err := readMessage(t.out)
		if err != nil {
			t.failPending(err)
			return
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.malformed.Add(1)
			Logger().Warn("malformed message from tool", zap.Error(err))
			continue
		}
		t.dispatch(&msg)
	}
}

func (t *Tool) dispatch(msg *rpcMessage) {
	switch {
	case msg.Method == "" && len(msg.ID) > 0:
		// Ответ на наш запрос
		id, err := strconv.ParseInt(string(msg.ID), 10, 64)
		if err != nil {
			t.malformed.Add(1)
			return
		}
		trace.Point(t.tracer, trace.ScopeWire, "recv:response", "id="+strconv.FormatInt(id, 10))
		t.mu.Lock()
		ch, ok := t.pending[id]
		if ok {
			delete(t.pending, id)
		}
		t.mu.Unlock()
		if ok {
			ch <- msg
		}
	case msg.Method != "" && len(msg.ID) > 0:
		// Запрос от сервера к нам (registerCapability, workDoneProgress/create).
		// Пустого результата достаточно.
		trace.Point(t.tracer, trace.ScopeWire, "recv:"+msg.Method, "server request")
		if err := t.respondNull(msg.ID); err != nil {
			Logger().Debug("reply to server request failed",
				zap.String("method", msg.Method), zap.Error(err))
		}
	case msg.Method != "":
		trace.Point(t.tracer, trace.ScopeWire, "recv:"+msg.Method, "")
		t.mu.Lock()
		h := t.handlers[msg.Method]
		t.mu.Unlock()
		if h != nil {
			h(msg.Params)
		}
	}
}

func (t *Tool) failPending(cause error) {
	t.mu.Lock()
	if t.recvErr == nil {
		if errors.Is(cause, io.EOF) {
			t.recvErr = ErrToolExited
		} else {
			t.recvErr = fmt.Errorf("%w: %v", ErrToolExited, cause)
		}
	}
	pending := t.pending
	t.pending = make(map[int64]chan *rpcMessage)
	t.mu.Unlock()
	for _, ch := range pending {
		close(ch)
	}
}

// Request sends a JSON-RPC request and waits for its response.
func (t *Tool) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	t.mu.Lock()
	if t.recvErr != nil {
		err := t.recvErr
		t.mu.Unlock()
		return nil, err
	}
	t.nextID++
	id := t.nextID
	ch := make(chan *rpcMessage, 1)
	t.pending[id] = ch
	t.mu.Unlock()

	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	trace.Point(t.tracer, trace.ScopeWire, "send:"+method, "id="+strconv.FormatInt(id, 10))
	if err := t.send(msg); err != nil {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		return nil, err
	}

	select {
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, t.readErr()
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: %s (%d)", method, resp.Error.Message, resp.Error.Code)
		}
		return resp.Result, nil
	}
}

// Notify sends a JSON-RPC notification (no response expected).
func (t *Tool) Notify(method string, params any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	trace.Point(t.tracer, trace.ScopeWire, "send:"+method, "")
	return t.send(msg)
}

func (t *Tool) respondNull(id json.RawMessage) error {
	return t.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"result":  nil,
	})
}

func (t *Tool) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if err := writeMessage(t.w, payload); err != nil {
		return err
	}
	return t.w.Flush()
}

// Handle registers a notification handler and returns its remove func.
// One handler per method; registering again replaces the old one.
func (t *Tool) Handle(method string, h NotificationHandler) func() {
	t.mu.Lock()
	t.handlers[method] = h
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.handlers, method)
		t.mu.Unlock()
	}
}

func (t *Tool) handlerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handlers)
}

// MalformedCount returns how many undecodable messages the tool has sent.
func (t *Tool) MalformedCount() int64 {
	return t.malformed.Load()
}

func (t *Tool) readErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recvErr != nil {
		return t.recvErr
	}
	return ErrToolExited
}

// Alive reports whether the tool process has not been reaped yet.
func (t *Tool) Alive() bool {
	select {
	case <-t.exited:
		return false
	default:
		return true
	}
}

// Shutdown performs the polite shutdown/exit sequence and waits for the
// process to be reaped. The context bounds the wait; on overrun the
// process is killed and an error returned.
func (t *Tool) Shutdown(ctx context.Context) error {
	if _, err := t.Request(ctx, "shutdown", nil); err != nil {
		Logger().Debug("shutdown request failed", zap.Error(err))
	}
	if err := t.Notify("exit", nil); err != nil {
		Logger().Debug("exit notification failed", zap.Error(err))
	}
	_ = t.stdin.Close()

	select {
	case <-t.exited:
		return nil
	case <-ctx.Done():
		t.Kill()
		<-t.exited
		return fmt.Errorf("tool did not exit before deadline: %w", ctx.Err())
	}
}

// Kill terminates the tool process immediately.
func (t *Tool) Kill() {
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
}

func (t *Tool) drainStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		Logger().Debug("tool stderr", zap.String("line", sc.Text()))
	}
}
