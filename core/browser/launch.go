package browser

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/mitchellh/go-homedir"

	"github.com/jaeles-project/loadscript/core"
)

type LaunchConfig struct {
	Headless          bool
	Bin               string
	NavigationTimeout time.Duration
	// InitScripts are files evaluated in every new document before page scripts.
	InitScripts []string
}

// Session is one Chromium process with a single page to inject into.
type Session struct {
	cfg      LaunchConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	Page     *rod.Page
}

func resolveBrowserBinary(ctx context.Context, explicit string) (string, error) {
	for _, candidate := range []string{explicit, os.Getenv("ROD_BROWSER")} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		expanded, err := homedir.Expand(candidate)
		if err != nil {
			core.Logger.Warnf("Cannot expand browser path %s: %v", candidate, err)
			continue
		}
		if _, err := os.Stat(expanded); err != nil {
			core.Logger.Warnf("Browser binary %s cannot be used: %v", expanded, err)
			continue
		}
		return expanded, nil
	}

	if bin, has := launcher.LookPath(); has {
		if _, err := os.Stat(bin); err == nil {
			return bin, nil
		}
	}

	browser := launcher.NewBrowser()
	if ctx != nil {
		browser.Context = ctx
	}
	browser.Logger = log.New(io.Discard, "", 0)

	path, err := browser.Get()
	if err != nil {
		return "", err
	}
	core.Logger.Infof("Downloaded Chromium to %s", path)
	return path, nil
}

func Launch(ctx context.Context, cfg LaunchConfig) (*Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 12 * time.Second
	}

	binaryPath, err := resolveBrowserBinary(ctx, cfg.Bin)
	if err != nil {
		return nil, fmt.Errorf("resolve browser binary: %w", err)
	}
	core.Logger.Debugf("Using Chromium binary %s", binaryPath)

	launch := launcher.New().
		Context(ctx).
		Bin(binaryPath).
		Leakless(false).
		NoSandbox(true).
		Headless(cfg.Headless).
		Set("disable-gpu", "1")

	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		launch.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		launch.Kill()
		return nil, fmt.Errorf("create page: %w", err)
	}

	s := &Session{cfg: cfg, launcher: launch, browser: browser, Page: page}
	if err := s.applyInitScripts(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) applyInitScripts() error {
	for _, scriptPath := range s.cfg.InitScripts {
		if scriptPath == "" {
			continue
		}
		expanded, err := homedir.Expand(scriptPath)
		if err != nil {
			return fmt.Errorf("expand init script path: %w", err)
		}
		absPath, err := filepath.Abs(expanded)
		if err != nil {
			return fmt.Errorf("resolve init script path: %w", err)
		}
		content, err := os.ReadFile(absPath)
		if err != nil {
			return fmt.Errorf("read init script %s: %w", scriptPath, err)
		}
		if _, err := s.Page.EvalOnNewDocument(string(content)); err != nil {
			return fmt.Errorf("inject init script %s: %w", scriptPath, err)
		}
	}
	return nil
}

// Navigate loads pageURL and waits for its load event.
func (s *Session) Navigate(ctx context.Context, pageURL string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	navCtx := s.Page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	if err := navCtx.Navigate(pageURL); err != nil {
		return fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if err := navCtx.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", pageURL, err)
	}
	return nil
}

func (s *Session) Close() error {
	if s.Page != nil {
		_ = s.Page.Close()
		s.Page = nil
	}
	if s.browser != nil {
		_ = s.browser.Close()
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
	return nil
}
