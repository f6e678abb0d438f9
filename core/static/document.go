// Package static is a Host backed by an in-memory HTML tree. Scripts are
// fetched but never run; "execution" is recorded in the order a browser
// would use.
package static

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jaeles-project/loadscript/core"
	"github.com/jaeles-project/loadscript/internal/netutil"
)

const emptyDocument = "<!DOCTYPE html><html><head></head><body></body></html>"

type Document struct {
	mu       sync.Mutex
	root     *html.Node
	base     *url.URL
	fetcher  Fetcher
	log      *logrus.Entry
	ordered  []*pendingScript
	executed []string
}

type pendingScript struct {
	src     string
	arrived bool
	ok      bool
	settle  func(bool)
}

type Option func(*Document)

func WithFetcher(f Fetcher) Option {
	return func(d *Document) {
		if f != nil {
			d.fetcher = f
		}
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.log = logrus.NewEntry(logger)
		}
	}
}

// New returns an empty document whose relative script urls resolve
// against base.
func New(base string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(emptyDocument), base, opts...)
}

func Parse(r io.Reader, base string, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return FromNode(root, base, opts...)
}

// FromNode wraps an existing tree. The tree may lack a head; one is created
// on the first injection.
func FromNode(root *html.Node, base string, opts ...Option) (*Document, error) {
	if root == nil {
		return nil, fmt.Errorf("document root is nil")
	}
	baseURL, err := netutil.ParseBase(base)
	if err != nil {
		return nil, err
	}
	d := &Document{root: root, base: baseURL, log: logrus.NewEntry(core.Logger)}
	for _, opt := range opts {
		opt(d)
	}
	if d.fetcher == nil {
		d.fetcher = NewCollyFetcher(FetcherConfig{})
	}
	d.log = d.log.WithField("prefix", "static")
	return d, nil
}

// Open fetches pageURL and parses it as the document.
func Open(ctx context.Context, pageURL string, opts ...Option) (*Document, error) {
	seed := &Document{}
	for _, opt := range opts {
		opt(seed)
	}
	fetcher := seed.fetcher
	if fetcher == nil {
		fetcher = NewCollyFetcher(FetcherConfig{})
		opts = append(opts, WithFetcher(fetcher))
	}
	body, err := fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return Parse(bytes.NewReader(body), pageURL, opts...)
}

func (d *Document) Inject(ctx context.Context, s core.Script, settle func(ok bool)) error {
	target, resolveErr := netutil.ResolveScriptURL(d.base, s.URL)
	if resolveErr == nil && !netutil.IsFetchable(target) {
		resolveErr = fmt.Errorf("unsupported script url %s", target)
	}

	d.mu.Lock()
	head := d.head()
	head.AppendChild(scriptElement(s))
	entry := &pendingScript{src: s.URL, settle: settle}
	if !s.Async {
		d.ordered = append(d.ordered, entry)
	}
	d.mu.Unlock()

	go func() {
		if resolveErr != nil {
			d.log.WithField("url", s.URL).Debugf("Script error: %v", resolveErr)
			d.arrive(s.Async, entry, false)
			return
		}
		if _, err := d.fetcher.Fetch(ctx, target); err != nil {
			if ctx != nil && ctx.Err() != nil {
				return
			}
			d.log.WithField("url", s.URL).Debugf("Script error: %v", err)
			d.arrive(s.Async, entry, false)
			return
		}
		d.arrive(s.Async, entry, true)
	}()
	return nil
}

// arrive marks a fetch as finished and runs whatever became runnable. A
// failed script fires error straight away but still releases the ordered
// scripts queued behind it.
func (d *Document) arrive(async bool, entry *pendingScript, ok bool) {
	if !ok {
		entry.settle(false)
	}
	if async {
		if ok {
			d.mu.Lock()
			d.executed = append(d.executed, entry.src)
			d.mu.Unlock()
			entry.settle(true)
		}
		return
	}

	d.mu.Lock()
	entry.arrived, entry.ok = true, ok
	var ready []*pendingScript
	for len(d.ordered) > 0 && d.ordered[0].arrived {
		next := d.ordered[0]
		d.ordered = d.ordered[1:]
		if next.ok {
			d.executed = append(d.executed, next.src)
			ready = append(ready, next)
		}
	}
	d.mu.Unlock()

	for _, p := range ready {
		p.settle(true)
	}
}

// head returns the document head, creating it (and an html element) when
// missing. Callers hold d.mu.
func (d *Document) head() *html.Node {
	if head := findElement(d.root, atom.Head); head != nil {
		return head
	}
	root := findElement(d.root, atom.Html)
	if root == nil {
		root = &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
		d.root.AppendChild(root)
	}
	head := &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
	root.InsertBefore(head, root.FirstChild)
	return head
}

// Executed lists script srcs in the order they ran.
func (d *Document) Executed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.executed))
	copy(out, d.executed)
	return out
}

// Scripts lists the script elements currently in the head.
func (d *Document) Scripts() []core.ScriptNode {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc := goquery.NewDocumentFromNode(d.root)
	var nodes []core.ScriptNode
	doc.Find("head script[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		_, async := sel.Attr("async")
		id, _ := sel.Attr(core.NodeIDAttribute)
		nodes = append(nodes, core.ScriptNode{Src: src, Async: async, ID: id})
	})
	return nodes
}

func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

func scriptElement(s core.Script) *html.Node {
	attrs := []html.Attribute{
		{Key: "src", Val: s.URL},
		{Key: core.NodeIDAttribute, Val: uuid.NewString()},
	}
	if s.Async {
		attrs = append(attrs, html.Attribute{Key: "async"})
	}
	return &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     attrs,
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
