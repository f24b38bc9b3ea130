package redis

import (
	"context"
	"github.com/ValentinKolb/dFacade/lib/kv"
	"github.com/redis/go-redis/v9"
	"sync"
)

// pubSub adapts a go-redis subscription to kv.PubSub
type pubSub struct {
	ps   *redis.PubSub
	msgs chan kv.Message

	mu      sync.Mutex
	started bool
	closed  bool
}

func newPubSub(ps *redis.PubSub) *pubSub {
	return &pubSub{
		ps:   ps,
		msgs: make(chan kv.Message),
	}
}

func (p *pubSub) Subscribe(ctx context.Context, channels ...string) error {
	if len(channels) == 0 {
		return nil
	}
	if err := p.ps.Subscribe(ctx, channels...); err != nil {
		return err
	}
	p.start()
	return nil
}

// Unsubscribe never sends an empty UNSUBSCRIBE, redis would drop all channels
func (p *pubSub) Unsubscribe(ctx context.Context, channels ...string) error {
	if len(channels) == 0 {
		return nil
	}
	return p.ps.Unsubscribe(ctx, channels...)
}

func (p *pubSub) Messages() <-chan kv.Message {
	return p.msgs
}

func (p *pubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	err := p.ps.Close()
	// without a forwarder nobody else closes msgs
	if !p.started {
		close(p.msgs)
	}
	return err
}

// start launches the forwarder once the first channel was subscribed.
// go-redis only starts receiving after Channel was called.
func (p *pubSub) start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.closed {
		return
	}
	p.started = true

	in := p.ps.Channel()
	go func() {
		defer close(p.msgs)
		for msg := range in {
			p.msgs <- kv.Message{Channel: msg.Channel, Payload: msg.Payload}
		}
	}()
}
