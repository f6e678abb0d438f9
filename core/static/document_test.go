package static

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jaeles-project/loadscript/core"
)

type scriptServer struct {
	*httptest.Server
	hits    map[string]*int64
	release chan struct{}
}

// newScriptServer serves 200 for every .js path except missing.js; slow.js
// blocks until release is closed.
func newScriptServer(t *testing.T) *scriptServer {
	t.Helper()
	s := &scriptServer{
		hits:    map[string]*int64{},
		release: make(chan struct{}),
	}
	for _, p := range []string{"/a.js", "/b.js", "/c.js", "/missing.js", "/slow.js", "/fast.js", "/page.html"} {
		s.hits[p] = new(int64)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if counter, ok := s.hits[r.URL.Path]; ok {
			atomic.AddInt64(counter, 1)
		}
		switch r.URL.Path {
		case "/missing.js":
			http.NotFound(w, r)
			return
		case "/slow.js":
			<-s.release
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><title>t</title></head><body></body></html>`))
			return
		}
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte("window.loaded = true;"))
	}))
	t.Cleanup(func() {
		select {
		case <-s.release:
		default:
			close(s.release)
		}
		s.Close()
	})
	return s
}

func (s *scriptServer) count(path string) int64 {
	return atomic.LoadInt64(s.hits[path])
}

func newLoader(t *testing.T, doc *Document) *core.Loader {
	t.Helper()
	l := core.NewLoader(doc)
	t.Cleanup(l.Close)
	return l
}

func wait(t *testing.T, f *core.Future) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.Wait(ctx)
}

func TestDocumentLoadsScriptOnce(t *testing.T) {
	srv := newScriptServer(t)
	doc, err := New(srv.URL + "/")
	require.NoError(t, err)
	loader := newLoader(t, doc)

	first := loader.Load("a.js", false)
	second := loader.Load("a.js", false)
	assert.Same(t, first, second)

	url, err := wait(t, first)
	require.NoError(t, err)
	assert.Equal(t, "a.js", url)
	url, err = wait(t, second)
	require.NoError(t, err)
	assert.Equal(t, "a.js", url)

	assert.Equal(t, int64(1), srv.count("/a.js"))
	scripts := doc.Scripts()
	require.Len(t, scripts, 1)
	assert.Equal(t, "a.js", scripts[0].Src)
	assert.False(t, scripts[0].Async)
	assert.NotEmpty(t, scripts[0].ID)
}

func TestDocumentFailureAndSuccessAreIndependent(t *testing.T) {
	srv := newScriptServer(t)
	doc, err := New(srv.URL + "/")
	require.NoError(t, err)
	loader := newLoader(t, doc)

	missing := loader.Load("missing.js", false)
	ok := loader.Load("c.js", false)

	_, err = wait(t, missing)
	var loadErr *core.LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "missing.js", loadErr.URL)

	url, err := wait(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "c.js", url)

	again := loader.Load("missing.js", false)
	assert.Same(t, missing, again)
	assert.Equal(t, int64(1), srv.count("/missing.js"))
	assert.Len(t, doc.Scripts(), 2, "failed nodes stay in the document")
	assert.Equal(t, []string{"c.js"}, doc.Executed())
}

func TestDocumentOrderedScriptsExecuteInInsertionOrder(t *testing.T) {
	srv := newScriptServer(t)
	doc, err := New(srv.URL + "/")
	require.NoError(t, err)
	loader := newLoader(t, doc)

	slow := loader.Load("slow.js", false)
	fast := loader.Load("fast.js", false)

	select {
	case <-fast.Done():
		t.Fatal("ordered script ran before the one inserted ahead of it")
	case <-time.After(100 * time.Millisecond):
	}
	close(srv.release)

	_, err = wait(t, slow)
	require.NoError(t, err)
	_, err = wait(t, fast)
	require.NoError(t, err)
	assert.Equal(t, []string{"slow.js", "fast.js"}, doc.Executed())
}

func TestDocumentAsyncScriptsExecuteOnArrival(t *testing.T) {
	srv := newScriptServer(t)
	doc, err := New(srv.URL + "/")
	require.NoError(t, err)
	loader := newLoader(t, doc)

	slow := loader.Load("slow.js", true)
	fast := loader.Load("fast.js", true)

	_, err = wait(t, fast)
	require.NoError(t, err)
	assert.Equal(t, core.Pending, slow.State())

	close(srv.release)
	_, err = wait(t, slow)
	require.NoError(t, err)
	assert.Equal(t, []string{"fast.js", "slow.js"}, doc.Executed())

	for _, s := range doc.Scripts() {
		assert.True(t, s.Async, s.Src)
	}
}

func TestDocumentFailedOrderedScriptReleasesQueue(t *testing.T) {
	srv := newScriptServer(t)
	doc, err := New(srv.URL + "/")
	require.NoError(t, err)
	loader := newLoader(t, doc)

	missing := loader.Load("missing.js", false)
	after := loader.Load("b.js", false)

	_, err = wait(t, missing)
	assert.Error(t, err)
	_, err = wait(t, after)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.js"}, doc.Executed())
}

func TestDocumentRejectsUnfetchableURL(t *testing.T) {
	doc, err := New("")
	require.NoError(t, err)
	loader := newLoader(t, doc)

	f := loader.Load("relative-without-base.js", false)
	_, err = wait(t, f)
	assert.Error(t, err)
	assert.Len(t, doc.Scripts(), 1)
}

func TestDocumentCreatesMissingHead(t *testing.T) {
	root := &html.Node{Type: html.DocumentNode}
	htmlEl := &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	root.AppendChild(htmlEl)
	htmlEl.AppendChild(body)

	release := make(chan struct{})
	fetcher := fetcherFunc(func(ctx context.Context, _ string) ([]byte, error) {
		<-release
		return nil, nil
	})
	t.Cleanup(func() { close(release) })

	doc, err := FromNode(root, "https://example.com/", WithFetcher(fetcher))
	require.NoError(t, err)
	require.NoError(t, doc.Inject(context.Background(), core.Script{URL: "x.js", Async: true}, func(bool) {}))

	assert.Equal(t, atom.Head, htmlEl.FirstChild.DataAtom)
	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	assert.True(t, strings.Contains(buf.String(), `<head><script src="x.js"`), buf.String())
}

func TestOpenParsesFetchedPage(t *testing.T) {
	srv := newScriptServer(t)
	doc, err := Open(context.Background(), srv.URL+"/page.html")
	require.NoError(t, err)
	loader := newLoader(t, doc)

	_, err = wait(t, loader.Load("/a.js", false))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	assert.Contains(t, buf.String(), "<title>t</title>")
	assert.Contains(t, buf.String(), `src="/a.js"`)
}

func TestCollyFetcherReportsHTTPErrors(t *testing.T) {
	srv := newScriptServer(t)
	fetcher := NewCollyFetcher(FetcherConfig{UserAgent: "loadscript-test", Timeout: 2 * time.Second})

	body, err := fetcher.Fetch(context.Background(), srv.URL+"/a.js")
	require.NoError(t, err)
	assert.Equal(t, "window.loaded = true;", string(body))

	_, err = fetcher.Fetch(context.Background(), srv.URL+"/missing.js")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fetcher.Fetch(ctx, srv.URL+"/a.js")
	assert.ErrorIs(t, err, context.Canceled)
}

type fetcherFunc func(ctx context.Context, target string) ([]byte, error)

func (f fetcherFunc) Fetch(ctx context.Context, target string) ([]byte, error) {
	return f(ctx, target)
}

func TestResolveUserAgent(t *testing.T) {
	assert.Contains(t, webUserAgents, ResolveUserAgent("web"))
	assert.Contains(t, mobileUserAgents, ResolveUserAgent("MOBI"))
	assert.Equal(t, "custom/1.0", ResolveUserAgent("custom/1.0"))
	assert.Equal(t, "", ResolveUserAgent(""))
}
