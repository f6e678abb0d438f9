package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
)

// EventBinder renders the JS that wires a script node's load and error
// events to the ok and fail callbacks in scope.
type EventBinder interface {
	Name() string
	Bind() string
}

type listenerBinder struct{}

func (listenerBinder) Name() string { return "listener" }

func (listenerBinder) Bind() string {
	return `script.addEventListener('load', ok, false);
		script.addEventListener('error', fail, false);`
}

// legacyBinder serves documents whose nodes lack addEventListener.
type legacyBinder struct{}

func (legacyBinder) Name() string { return "legacy" }

func (legacyBinder) Bind() string {
	return `if (script.attachEvent) {
			script.attachEvent('onload', ok);
			script.attachEvent('onerror', fail);
		} else {
			script.onload = ok;
			script.onerror = fail;
		}`
}

const detectListenerJS = `() => {
	const node = window.document.createElement('script');
	return typeof node.addEventListener === 'function';
}`

// detectBinder asks the page once which subscription style its nodes support.
func detectBinder(ctx context.Context, page *rod.Page) (EventBinder, error) {
	res, err := page.Context(ctx).Eval(detectListenerJS)
	if err != nil {
		return nil, fmt.Errorf("detect event support: %w", err)
	}
	if res.Value.Bool() {
		return listenerBinder{}, nil
	}
	return legacyBinder{}, nil
}

const pendingKey = "__loadscriptPending"

func injectScript(binder EventBinder, idAttr string) string {
	return fmt.Sprintf(`(url, async, id) => {
	const doc = window.document;
	let head = doc.getElementsByTagName('head')[0];
	if (!head) {
		head = doc.createElement('head');
		doc.documentElement.insertBefore(head, doc.documentElement.firstChild);
	}
	const script = doc.createElement('script');
	script.src = url;
	script.async = async;
	script.setAttribute('%s', id);
	const pending = window.%s || (window.%s = {});
	pending[id] = new Promise((resolve) => {
		const ok = () => resolve(true);
		const fail = () => resolve(false);
		%s
	});
	head.appendChild(script);
	return id;
}`, idAttr, pendingKey, pendingKey, binder.Bind())
}

const awaitScript = `(key, id) => {
	const pending = window[key] || {};
	const outcome = pending[id];
	delete pending[id];
	return outcome === undefined ? false : outcome;
}`
