package lsp

import "sync"

// oneshot is a signal cell that can be resolved exactly once from any
// goroutine. Extra Resolve calls are no-ops, so notification handlers
// and timers can race without coordination.
type oneshot struct {
	once sync.Once
	ch   chan struct{}
}

func newOneshot() *oneshot {
	return &oneshot{ch: make(chan struct{})}
}

func (o *oneshot) Resolve() {
	o.once.Do(func() { close(o.ch) })
}

func (o *oneshot) Done() <-chan struct{} {
	return o.ch
}
