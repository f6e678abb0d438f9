package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaeles-project/loadscript/core"
	"github.com/jaeles-project/loadscript/core/browser"
	"github.com/jaeles-project/loadscript/core/static"
	"github.com/jaeles-project/loadscript/internal/config"
	"github.com/jaeles-project/loadscript/internal/logging"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   core.CLIName,
		Short: "Load scripts into a live document, once each",
		Long:  fmt.Sprintf("Deduplicating script loader - %s by %s", core.VERSION, core.AUTHOR),
		RunE:  runRoot,
	}
	config.RegisterFlags(cmd.Flags())
	cmd.SilenceUsage = true
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	if showVersion, err := cmd.Flags().GetBool("version"); err == nil && showVersion {
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", core.VERSION)
		fmt.Fprintln(cmd.OutOrStdout(), renderExamples())
		return nil
	}

	cfg, err := config.NewLoader(cmd).Load()
	if err != nil {
		return err
	}
	logging.Configure(core.Logger, logging.Options{Debug: cfg.Debug, Verbose: cfg.Verbose, Quiet: cfg.Quiet, Output: cmd.ErrOrStderr()})

	if len(cfg.Scripts)+len(cfg.AsyncScripts) == 0 {
		core.Logger.Info("No script in list. Please check your script input again")
		return nil
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	doc, err := openDocument(ctx, cfg)
	if err != nil {
		return err
	}
	defer doc.Close()

	stats := core.NewLoadStats()
	loader := core.Init(doc, core.WithContext(ctx), core.WithStats(stats))
	defer loader.Close()

	if cfg.Bridge {
		bridge, err := doc.installBridge(ctx, loader, cfg.Namespace)
		if err != nil {
			return err
		}
		defer bridge.Close()
	}

	var out *core.Output
	if cfg.OutputFile != "" {
		if out, err = core.NewOutputPath(cfg.OutputFile); err != nil {
			return err
		}
		defer out.Close()
	}

	startTime := time.Now()
	requests := make([]request, 0, len(cfg.Scripts)+len(cfg.AsyncScripts))
	for _, url := range cfg.Scripts {
		requests = append(requests, request{url: url, future: core.Load(url, false)})
	}
	for _, url := range cfg.AsyncScripts {
		requests = append(requests, request{url: url, async: true, future: core.Load(url, true)})
	}

	failed := 0
	for _, req := range requests {
		result := awaitResult(ctx, cfg, req)
		if result.Status != core.Loaded.String() {
			failed++
		}
		line := renderResult(result, cfg.JSONOutput)
		fmt.Fprintln(cmd.OutOrStdout(), line)
		if out != nil {
			out.WriteToFile(line)
		}
	}

	if cfg.DumpHead {
		if err := dumpHead(ctx, cmd.OutOrStdout(), doc, cfg.JSONOutput); err != nil {
			core.Logger.Warnf("Failed to list head scripts: %v", err)
		}
	}

	elapsed := time.Since(startTime).Round(time.Millisecond)
	core.Logger.Infof("Finished in %s: requested %d, reused %d, loaded %d, failed %d, pending %d (%.2f loads/s)",
		elapsed, stats.GetRequested(), stats.GetReused(), stats.GetLoaded(), stats.GetFailed(), stats.GetPending(),
		stats.GetLPS(elapsed))

	if failed > 0 {
		return fmt.Errorf("%d of %d scripts did not load", failed, len(requests))
	}
	return nil
}

type request struct {
	url    string
	async  bool
	future *core.Future
}

func awaitResult(ctx context.Context, cfg config.Config, req request) ScriptResult {
	waitCtx := ctx
	if cfg.Wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.Wait)
		defer cancel()
	}
	_, _ = req.future.Wait(waitCtx)
	return ScriptResult{
		Page:   cfg.Page,
		URL:    req.url,
		Async:  req.async,
		Status: req.future.State().String(),
	}
}

// document is the host a run injects into, plus what the CLI needs beyond
// core.Host.
type document interface {
	core.Host
	headScripts(ctx context.Context) ([]core.ScriptNode, error)
	installBridge(ctx context.Context, loader *core.Loader, namespace string) (io.Closer, error)
	Close() error
}

func openDocument(ctx context.Context, cfg config.Config) (document, error) {
	switch cfg.Host {
	case config.HostStatic:
		return openStatic(ctx, cfg)
	case config.HostBrowser:
		return openBrowser(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown host %q", cfg.Host)
	}
}

type staticDocument struct {
	*static.Document
}

func openStatic(ctx context.Context, cfg config.Config) (document, error) {
	fetcher := static.NewCollyFetcher(static.FetcherConfig{UserAgent: cfg.UserAgent, Timeout: cfg.FetchTimeout})
	opts := []static.Option{static.WithFetcher(fetcher), static.WithLogger(core.Logger)}

	var (
		doc *static.Document
		err error
	)
	if cfg.Page != "" {
		doc, err = static.Open(ctx, cfg.Page, opts...)
	} else {
		doc, err = static.New("", opts...)
	}
	if err != nil {
		return nil, err
	}
	return staticDocument{doc}, nil
}

func (d staticDocument) headScripts(context.Context) ([]core.ScriptNode, error) {
	return d.Scripts(), nil
}

func (d staticDocument) installBridge(context.Context, *core.Loader, string) (io.Closer, error) {
	return nil, fmt.Errorf("the static host has no page scripts to bridge")
}

func (d staticDocument) Close() error { return nil }

type browserDocument struct {
	*browser.Host
	session *browser.Session
}

func openBrowser(ctx context.Context, cfg config.Config) (document, error) {
	session, err := browser.Launch(ctx, browser.LaunchConfig{
		Headless:          cfg.Headless,
		Bin:               cfg.BrowserBin,
		NavigationTimeout: cfg.NavigationTimeout,
		InitScripts:       cfg.InitScripts,
	})
	if err != nil {
		return nil, err
	}
	if err := session.Navigate(ctx, cfg.Page); err != nil {
		_ = session.Close()
		return nil, err
	}
	host, err := browser.NewHost(ctx, session.Page, browser.HostConfig{LegacyEvents: cfg.LegacyEvents})
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	return browserDocument{Host: host, session: session}, nil
}

func (d browserDocument) headScripts(ctx context.Context) ([]core.ScriptNode, error) {
	return d.HeadScripts(ctx)
}

func (d browserDocument) installBridge(ctx context.Context, loader *core.Loader, namespace string) (io.Closer, error) {
	return browser.InstallBridge(ctx, d.session.Page, loader, namespace)
}

func (d browserDocument) Close() error {
	return d.session.Close()
}

func renderExamples() string {
	h := "\n\nExamples Command:\n"
	h += `loadscript -p "https://target.com/" -s /static/vendor.js -s /static/app.js` + "\n"
	h += `loadscript -p "https://target.com/" -a https://cdn.example.com/widget.js --dump-head` + "\n"
	h += `loadscript --host static -p "https://target.com/" -S scripts.txt --json -o results.txt` + "\n"
	h += `loadscript -p "https://target.com/" --bridge --namespace nz.ffx -s /static/app.js` + "\n"
	return h
}
