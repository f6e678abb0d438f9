package browser

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"

	"github.com/jaeles-project/loadscript/core"
)

type delivery struct {
	url string
	ok  bool
}

// manualHost keeps settle callbacks so the test decides when scripts finish.
type manualHost struct {
	mu       sync.Mutex
	settlers map[string]func(bool)
}

func (h *manualHost) Inject(_ context.Context, s core.Script, settle func(bool)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settlers[s.URL] = settle
	return nil
}

func (h *manualHost) fire(t *testing.T, url string, ok bool) {
	t.Helper()
	h.mu.Lock()
	settle := h.settlers[url]
	h.mu.Unlock()
	require.NotNil(t, settle, url)
	settle(ok)
}

func newTestBridge(t *testing.T) (*Bridge, *manualHost, *core.Loader, chan delivery) {
	t.Helper()
	host := &manualHost{settlers: map[string]func(bool){}}
	loader := core.NewLoader(host)
	t.Cleanup(loader.Close)

	delivered := make(chan delivery, 8)
	b := newBridge(context.Background(), loader, func(_ context.Context, url string, ok bool) error {
		delivered <- delivery{url: url, ok: ok}
		return nil
	})
	t.Cleanup(func() { _ = b.Close() })
	return b, host, loader, delivered
}

func call(t *testing.T, b *Bridge, url string) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := b.handle(gson.New(map[string]interface{}{"url": url, "async": false}))
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("binding call for %s blocked", url)
	}
}

func next(t *testing.T, delivered chan delivery) delivery {
	t.Helper()
	select {
	case d := <-delivered:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome delivered to the page")
		return delivery{}
	}
}

func TestBridgeCallsDoNotWaitForEarlierScripts(t *testing.T) {
	b, host, loader, delivered := newTestBridge(t)

	call(t, b, "slow.js")
	call(t, b, "fast.js")

	host.fire(t, "fast.js", true)
	assert.Equal(t, delivery{url: "fast.js", ok: true}, next(t, delivered))

	host.fire(t, "slow.js", false)
	assert.Equal(t, delivery{url: "slow.js", ok: false}, next(t, delivered))

	call(t, b, "fast.js")
	assert.Equal(t, delivery{url: "fast.js", ok: true}, next(t, delivered))
	assert.Len(t, loader.Records(), 2)
}

func TestBridgeCloseStopsPendingRelays(t *testing.T) {
	b, _, _, delivered := newTestBridge(t)

	call(t, b, "never.js")
	require.NoError(t, b.Close())

	select {
	case d := <-delivered:
		t.Fatalf("unexpected delivery %+v", d)
	default:
	}
}
