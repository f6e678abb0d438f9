package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/ysmood/gson"

	"github.com/jaeles-project/loadscript/core"
)

const (
	bridgeBinding = "__loadscriptBridge"
	// recordsKey holds the page-side {url, promise} records.
	recordsKey = "__loadscriptBridgeRecords"
)

// deliverFunc settles the page promise recorded for url.
type deliverFunc func(ctx context.Context, url string, ok bool) error

// Bridge publishes a loader to page scripts as <namespace>.loadScript(url,
// async) and <namespace>.scriptsLoaded. loadScript returns the same Promise
// for every call with a given url, resolved or rejected with url.
type Bridge struct {
	ctx     context.Context
	cancel  context.CancelFunc
	loader  *core.Loader
	deliver deliverFunc
	log     *logrus.Entry
	wg      sync.WaitGroup

	stopExpose  func() error
	removeOnNew func() error
}

func newBridge(ctx context.Context, loader *core.Loader, deliver deliverFunc) *Bridge {
	b := &Bridge{
		loader:  loader,
		deliver: deliver,
		log:     core.Logger.WithField("prefix", "bridge"),
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
	return b
}

// InstallBridge exposes loader on page under namespace (dotted path off
// window). The binding survives reloads.
func InstallBridge(ctx context.Context, page *rod.Page, loader *core.Loader, namespace string) (*Bridge, error) {
	if page == nil || loader == nil {
		return nil, errors.New("install bridge: page and loader are required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	namespace = strings.Trim(strings.TrimSpace(namespace), ".")
	if namespace == "" {
		namespace = core.DefaultNamespace
	}

	b := newBridge(ctx, loader, func(ctx context.Context, url string, ok bool) error {
		_, err := page.Context(ctx).Eval(settleRecordJS, recordsKey, url, ok)
		return err
	})

	stop, err := page.Expose(bridgeBinding, b.handle)
	if err != nil {
		b.cancel()
		return nil, fmt.Errorf("expose loader: %w", err)
	}
	b.stopExpose = stop

	js, err := namespaceScript(namespace)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	remove, err := page.EvalOnNewDocument(js)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("install bridge on new documents: %w", err)
	}
	b.removeOnNew = remove
	if _, err := page.Context(ctx).Eval(`() => ` + js); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("install bridge: %w", err)
	}
	return b, nil
}

// handle runs inside rod's binding event loop, so it must not block: the
// outcome reaches the page later through deliver.
func (b *Bridge) handle(req gson.JSON) (interface{}, error) {
	url := req.Get("url").Str()
	future := b.loader.Load(url, req.Get("async").Bool())
	b.wg.Add(1)
	go b.relay(url, future)
	return nil, nil
}

func (b *Bridge) relay(url string, future *core.Future) {
	defer b.wg.Done()
	select {
	case <-future.Done():
	case <-b.ctx.Done():
		return
	}
	ok := future.State() == core.Loaded
	if err := b.deliver(b.ctx, url, ok); err != nil && b.ctx.Err() == nil {
		b.log.WithField("url", url).Debugf("Failed to settle page promise: %v", err)
	}
}

// Close removes the binding and stops relaying outcomes to the page.
func (b *Bridge) Close() error {
	var errs []error
	if b.stopExpose != nil {
		errs = append(errs, b.stopExpose())
	}
	if b.removeOnNew != nil {
		errs = append(errs, b.removeOnNew())
	}
	b.cancel()
	b.wg.Wait()
	return errors.Join(errs...)
}

const settleRecordJS = `(key, url, ok) => {
	const store = window[key];
	const record = store && store.byURL[url];
	if (!record) {
		return false;
	}
	if (ok) {
		record.resolve(url);
	} else {
		record.reject(url);
	}
	return true;
}`

// namespaceScript builds the self-invoking snippet that defines loadScript
// and scriptsLoaded.
func namespaceScript(namespace string) (string, error) {
	args := make([]string, 0, 3)
	for _, v := range []string{namespace, bridgeBinding, recordsKey} {
		quoted, err := jsoniter.MarshalToString(v)
		if err != nil {
			return "", fmt.Errorf("encode bridge argument: %w", err)
		}
		args = append(args, quoted)
	}
	return fmt.Sprintf(`(function (ns, binding, key) {
	let target = window;
	for (const part of ns.split('.')) {
		target = target[part] = target[part] || {};
	}
	const store = window[key] || (window[key] = {byURL: Object.create(null), records: []});
	target.loadScript = function (url, async) {
		url = String(url);
		const known = store.byURL[url];
		if (known) {
			return known.promise;
		}
		const record = {url: url};
		record.promise = new Promise(function (resolve, reject) {
			record.resolve = resolve;
			record.reject = reject;
		});
		store.byURL[url] = record;
		store.records.push(Object.freeze({url: url, promise: record.promise}));
		window[binding]({url: url, async: !!async}).catch(function () {
			record.reject(url);
		});
		return record.promise;
	};
	Object.defineProperty(target, 'scriptsLoaded', {
		configurable: true,
		enumerable: true,
		get: function () {
			return Object.freeze(store.records.slice());
		},
	});
})(%s)`, strings.Join(args, ", ")), nil
}
