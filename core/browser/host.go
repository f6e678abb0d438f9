package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jaeles-project/loadscript/core"
)

type HostConfig struct {
	// LegacyEvents skips capability detection and binds with attachEvent or
	// onload/onerror.
	LegacyEvents bool
	Logger       *logrus.Logger
}

// Host injects scripts into a live Chromium page.
type Host struct {
	page     *rod.Page
	binder   EventBinder
	injectJS string
	log      *logrus.Entry
}

func NewHost(ctx context.Context, page *rod.Page, cfg HostConfig) (*Host, error) {
	if page == nil {
		return nil, fmt.Errorf("new browser host: page is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = core.Logger
	}

	var binder EventBinder = legacyBinder{}
	if !cfg.LegacyEvents {
		detected, err := detectBinder(ctx, page)
		if err != nil {
			return nil, err
		}
		binder = detected
	}

	h := &Host{
		page:     page,
		binder:   binder,
		injectJS: injectScript(binder, core.NodeIDAttribute),
		log:      logger.WithField("prefix", "browser"),
	}
	h.log.Debugf("Binding script events with %s binder", binder.Name())
	return h, nil
}

func (h *Host) Binder() EventBinder {
	return h.binder
}

func (h *Host) Inject(ctx context.Context, s core.Script, settle func(ok bool)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	id := uuid.NewString()
	if _, err := h.page.Context(ctx).Eval(h.injectJS, s.URL, s.Async, id); err != nil {
		return fmt.Errorf("inject %s: %w", s.URL, err)
	}
	go h.await(ctx, s.URL, id, settle)
	return nil
}

// await blocks on the node's pending promise. A document torn down under the
// node (navigation, crash) counts as an error event; a cancelled ctx does not.
func (h *Host) await(ctx context.Context, url, id string, settle func(bool)) {
	res, err := h.page.Context(ctx).Eval(awaitScript, pendingKey, id)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.log.WithField("url", url).Debugf("Lost script node: %v", err)
		settle(false)
		return
	}
	settle(res.Value.Bool())
}

// HeadScripts lists the script elements in the page head.
func (h *Host) HeadScripts(ctx context.Context) ([]core.ScriptNode, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	content, err := h.page.Context(ctx).HTML()
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	return parseHeadScripts(content)
}

func parseHeadScripts(content string) ([]core.ScriptNode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	var nodes []core.ScriptNode
	doc.Find("head script[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		_, async := sel.Attr("async")
		id, _ := sel.Attr(core.NodeIDAttribute)
		nodes = append(nodes, core.ScriptNode{Src: src, Async: async, ID: id})
	})
	return nodes, nil
}
