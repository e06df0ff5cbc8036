package prompt

import (
	"context"
	"errors"
	"sync"
)

// ErrDispatcherClosed is returned for requests made after Close.
var ErrDispatcherClosed = errors.New("prompt dispatcher is closed")

type requestKind int

const (
	kindConfirm requestKind = iota
	kindPassword
)

type request struct {
	ctx   context.Context
	kind  requestKind
	title string
	reply chan response
}

type response struct {
	ok    bool
	value string
	err   error
}

// Dispatcher serializes prompts from many goroutines onto a single owner
// goroutine, so concurrent workers never interleave on the terminal. A
// worker blocks until its own question has been answered.
type Dispatcher struct {
	inner    Prompter
	requests chan request
	done     chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher starts the owner goroutine. Call Close to stop it.
func NewDispatcher(inner Prompter) *Dispatcher {
	d := &Dispatcher{
		inner:    inner,
		requests: make(chan request),
		done:     make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case req := <-d.requests:
			var resp response
			if err := req.ctx.Err(); err != nil {
				resp.err = err
			} else {
				switch req.kind {
				case kindConfirm:
					resp.ok, resp.err = d.inner.Confirm(req.ctx, req.title)
				case kindPassword:
					resp.value, resp.err = d.inner.Password(req.ctx, req.title)
				}
			}
			req.reply <- resp
		}
	}
}

func (d *Dispatcher) submit(ctx context.Context, kind requestKind, title string) (response, error) {
	req := request{ctx: ctx, kind: kind, title: title, reply: make(chan response, 1)}
	select {
	case d.requests <- req:
	case <-d.done:
		return response{}, ErrDispatcherClosed
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
	resp := <-req.reply
	return resp, resp.err
}

// Confirm forwards to the wrapped prompter on the owner goroutine.
func (d *Dispatcher) Confirm(ctx context.Context, title string) (bool, error) {
	resp, err := d.submit(ctx, kindConfirm, title)
	return resp.ok, err
}

// Password forwards to the wrapped prompter on the owner goroutine.
func (d *Dispatcher) Password(ctx context.Context, title string) (string, error) {
	resp, err := d.submit(ctx, kindPassword, title)
	return resp.value, err
}

// Close stops the owner goroutine after the prompt in progress, if any.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}
