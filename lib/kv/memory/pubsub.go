package memory

import (
	"context"
	"github.com/ValentinKolb/dFacade/lib/kv"
	"sync"
)

// pubSub is a subscription connection of the memory backend
type pubSub struct {
	backend  *Backend
	mu       sync.Mutex
	channels map[string]struct{}
	msgs     chan kv.Message
	closed   bool
}

func (p *pubSub) Subscribe(_ context.Context, channels ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	for _, c := range channels {
		p.channels[c] = struct{}{}
	}
	return nil
}

func (p *pubSub) Unsubscribe(_ context.Context, channels ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	for _, c := range channels {
		delete(p.channels, c)
	}
	return nil
}

func (p *pubSub) Messages() <-chan kv.Message {
	return p.msgs
}

func (p *pubSub) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.msgs)
	p.mu.Unlock()

	p.backend.subsMu.Lock()
	delete(p.backend.subs, p)
	p.backend.subsMu.Unlock()
	return nil
}

// deliver queues msg if the subscription listens on its channel.
// It never blocks: if the buffer is full the message is dropped.
func (p *pubSub) deliver(msg kv.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if _, ok := p.channels[msg.Channel]; !ok {
		return
	}
	select {
	case p.msgs <- msg:
	default:
		Logger.Warningf("subscription buffer full, dropping message on channel %q", msg.Channel)
	}
}
