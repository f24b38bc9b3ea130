package kvtesting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dFacade/lib/kv"
)

// BackendFactory creates a fresh, empty backend for one test.
// advance moves the backend's clock forward (used to test key expiry).
type BackendFactory func(t *testing.T) (backend kv.Backend, advance func(time.Duration))

// readyPrefix marks messages used to wait for a subscription to become active
const readyPrefix = "__ready:"

// RunBackendTests runs the conformance suite for a kv.Backend implementation.
func RunBackendTests(t *testing.T, name string, factory BackendFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			b, _ := factory(t)
			testSetGet(t, b)
		})

		t.Run("Delete", func(t *testing.T) {
			b, _ := factory(t)
			testDelete(t, b)
		})

		t.Run("SetNX", func(t *testing.T) {
			b, advance := factory(t)
			testSetNX(t, b, advance)
		})

		t.Run("DeleteIfEquals", func(t *testing.T) {
			b, advance := factory(t)
			testDeleteIfEquals(t, b, advance)
		})

		t.Run("ConcurrentSetNX", func(t *testing.T) {
			b, _ := factory(t)
			testConcurrentSetNX(t, b)
		})

		t.Run("PubSub", func(t *testing.T) {
			b, _ := factory(t)
			testPubSub(t, b)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			b, _ := factory(t)
			testEdgeCases(t, b)
		})

		t.Run("Close", func(t *testing.T) {
			b, _ := factory(t)
			testClose(t, b)
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, b kv.Backend) {
	ctx := context.Background()

	if _, found, err := b.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("Get(missing) = found %v, err %v; want not found without error", found, err)
	}

	if err := b.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, found, err := b.Get(ctx, "k")
	if err != nil || !found || value != "v1" {
		t.Fatalf("Get(k) = %q, %v, %v; want v1", value, found, err)
	}

	// overwrite
	if err := b.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if value, _, _ = b.Get(ctx, "k"); value != "v2" {
		t.Errorf("expected overwritten value v2, got %q", value)
	}

	// many keys
	for i := 0; i < 100; i++ {
		if err := b.Set(ctx, fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	for i := 0; i < 100; i++ {
		value, found, err := b.Get(ctx, fmt.Sprintf("key-%d", i))
		if err != nil || !found || value != fmt.Sprintf("value-%d", i) {
			t.Errorf("Get(key-%d) = %q, %v, %v", i, value, found, err)
		}
	}
}

func testDelete(t *testing.T, b kv.Backend) {
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		if err := b.Set(ctx, k, k); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	deleted, err := b.Delete(ctx, "a", "b", "missing")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted keys, got %d", deleted)
	}

	for _, k := range []string{"a", "b"} {
		if _, found, _ := b.Get(ctx, k); found {
			t.Errorf("key %s should be deleted", k)
		}
	}
	if _, found, _ := b.Get(ctx, "c"); !found {
		t.Error("key c should still exist")
	}

	if deleted, err = b.Delete(ctx, "a"); err != nil || deleted != 0 {
		t.Errorf("deleting a missing key: deleted %d, err %v", deleted, err)
	}
}

func testSetNX(t *testing.T, b kv.Backend, advance func(time.Duration)) {
	ctx := context.Background()

	ok, err := b.SetNX(ctx, "lock", "owner-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX = %v, %v; want true", ok, err)
	}

	ok, err = b.SetNX(ctx, "lock", "owner-2", time.Minute)
	if err != nil || ok {
		t.Fatalf("second SetNX = %v, %v; want false", ok, err)
	}

	value, _, _ := b.Get(ctx, "lock")
	if value != "owner-1" {
		t.Errorf("SetNX must not overwrite, got %q", value)
	}

	// expiry frees the key
	advance(2 * time.Minute)
	if _, found, _ := b.Get(ctx, "lock"); found {
		t.Error("key should have expired")
	}
	ok, err = b.SetNX(ctx, "lock", "owner-2", 0)
	if err != nil || !ok {
		t.Fatalf("SetNX after expiry = %v, %v; want true", ok, err)
	}

	// a ttl of 0 never expires
	advance(24 * time.Hour)
	if value, _, _ = b.Get(ctx, "lock"); value != "owner-2" {
		t.Errorf("expected owner-2 to hold the key, got %q", value)
	}
}

func testDeleteIfEquals(t *testing.T, b kv.Backend, advance func(time.Duration)) {
	ctx := context.Background()

	if err := b.Set(ctx, "lock", "owner-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	deleted, err := b.DeleteIfEquals(ctx, "lock", "owner-2")
	if err != nil || deleted {
		t.Fatalf("DeleteIfEquals with another value = %v, %v; want false", deleted, err)
	}
	if value, _, _ := b.Get(ctx, "lock"); value != "owner-1" {
		t.Errorf("key must be kept, got %q", value)
	}

	deleted, err = b.DeleteIfEquals(ctx, "lock", "owner-1")
	if err != nil || !deleted {
		t.Fatalf("DeleteIfEquals with the stored value = %v, %v; want true", deleted, err)
	}
	if _, found, _ := b.Get(ctx, "lock"); found {
		t.Error("key should be deleted")
	}

	deleted, err = b.DeleteIfEquals(ctx, "missing", "owner-1")
	if err != nil || deleted {
		t.Errorf("DeleteIfEquals on a missing key = %v, %v; want false", deleted, err)
	}

	// an expired key holds no value anymore
	if _, err := b.SetNX(ctx, "ttl", "owner-1", time.Second); err != nil {
		t.Fatalf("SetNX failed: %v", err)
	}
	advance(2 * time.Second)
	deleted, err = b.DeleteIfEquals(ctx, "ttl", "owner-1")
	if err != nil || deleted {
		t.Errorf("DeleteIfEquals on an expired key = %v, %v; want false", deleted, err)
	}
}

func testConcurrentSetNX(t *testing.T, b kv.Backend) {
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := b.SetNX(ctx, "contended", fmt.Sprintf("owner-%d", i), 0)
			if err != nil {
				t.Errorf("SetNX failed: %v", err)
			}
			if ok {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", winners.Load())
	}
}

func testPubSub(t *testing.T, b kv.Backend) {
	ctx := context.Background()

	ps, err := b.OpenPubSub(ctx)
	if err != nil {
		t.Fatalf("OpenPubSub failed: %v", err)
	}
	defer ps.Close()

	if err := ps.Subscribe(ctx, "news", "sports"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	awaitSubscribed(t, b, ps, "news")
	awaitSubscribed(t, b, ps, "sports")

	if err := b.Publish(ctx, "news", "hello"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := b.Publish(ctx, "weather", "ignored"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := b.Publish(ctx, "sports", `{"score":1}`); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got := receive(t, ps, 2)
	want := []kv.Message{{Channel: "news", Payload: "hello"}, {Channel: "sports", Payload: `{"score":1}`}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	// unsubscribing one channel keeps the others
	if err := ps.Unsubscribe(ctx, "news"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if err := b.Publish(ctx, "sports", "still here"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	got = receive(t, ps, 1)
	if got[0].Channel != "sports" || got[0].Payload != "still here" {
		t.Errorf("expected the sports message, got %+v", got[0])
	}

	// closing ends the message channel
	if err := ps.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case _, open := <-drain(ps.Messages()):
		if open {
			t.Error("message channel should be closed")
		}
	case <-time.After(2 * time.Second):
		t.Error("message channel not closed after Close")
	}
}

func testEdgeCases(t *testing.T, b kv.Backend) {
	ctx := context.Background()

	cases := []struct {
		key   string
		value string
	}{
		{"empty-value", ""},
		{"unicode-ключ", "ünïcödé ✓"},
		{"with\nnewline", "line1\nline2"},
		{"long-" + strings.Repeat("k", 500), strings.Repeat("v", 64*1024)},
	}

	for _, c := range cases {
		if err := b.Set(ctx, c.key, c.value); err != nil {
			t.Fatalf("Set(%q) failed: %v", c.key, err)
		}
		got, found, err := b.Get(ctx, c.key)
		if err != nil || !found || got != c.value {
			t.Errorf("Get(%q) returned %q (found %v, err %v)", c.key, got, found, err)
		}
	}

	if deleted, err := b.Delete(ctx); err != nil || deleted != 0 {
		t.Errorf("Delete without keys: %d, %v", deleted, err)
	}
}

func testClose(t *testing.T, b kv.Backend) {
	ctx := context.Background()

	if err := b.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, _, err := b.Get(ctx, "k"); err == nil {
		t.Error("Get after Close should fail")
	}
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// awaitSubscribed publishes marker messages on channel until one is received.
// Some servers confirm subscriptions asynchronously.
func awaitSubscribed(t *testing.T, b kv.Backend, ps kv.PubSub, channel string) {
	t.Helper()
	ctx := context.Background()

	deadline := time.Now().Add(5 * time.Second)
	for i := 0; time.Now().Before(deadline); i++ {
		if err := b.Publish(ctx, channel, fmt.Sprintf("%s%d", readyPrefix, i)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		select {
		case msg := <-ps.Messages():
			if msg.Channel == channel && strings.HasPrefix(msg.Payload, readyPrefix) {
				return
			}
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatalf("subscription to %s did not become active", channel)
}

// receive reads n messages, skipping late markers
func receive(t *testing.T, ps kv.PubSub, n int) []kv.Message {
	t.Helper()

	msgs := make([]kv.Message, 0, n)
	timeout := time.After(5 * time.Second)
	for len(msgs) < n {
		select {
		case msg, ok := <-ps.Messages():
			if !ok {
				t.Fatalf("message channel closed after %d of %d messages", len(msgs), n)
			}
			if strings.HasPrefix(msg.Payload, readyPrefix) {
				continue
			}
			msgs = append(msgs, msg)
		case <-timeout:
			t.Fatalf("received %d of %d messages", len(msgs), n)
		}
	}
	return msgs
}

// drain skips buffered messages and reports once the channel is closed
func drain(msgs <-chan kv.Message) <-chan kv.Message {
	out := make(chan kv.Message)
	go func() {
		for range msgs {
		}
		close(out)
	}()
	return out
}
