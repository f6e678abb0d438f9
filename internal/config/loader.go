package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "LOADSCRIPT"

func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Config file (default ./loadscript.yaml or ~/.config/loadscript/loadscript.yaml)")
	flags.String("host", string(HostBrowser), "Document host: browser (Chromium) or static (in-memory HTML)")
	flags.StringP("page", "p", "", "Page to load scripts into (static host: base url for relative scripts)")
	flags.StringSliceP("script", "s", []string{}, "Script to load, executed in request order (repeatable)")
	flags.StringSliceP("async", "a", []string{}, "Script to load, executed as soon as it arrives (repeatable)")
	flags.StringP("scripts-file", "S", "", "File with one script url per line (ordered)")
	flags.IntP("wait", "w", 30, "Seconds to wait for each script to settle (0 = forever)")
	flags.Int("nav-timeout", 12, "Browser navigation timeout in seconds")
	flags.IntP("timeout", "m", 10, "Static host fetch timeout in seconds")
	flags.Bool("headless", true, "Run Chromium headless")
	flags.String("browser-bin", "", "Chromium binary to use (default: ROD_BROWSER, system, download)")
	flags.StringSlice("init-script", []string{}, "JavaScript files evaluated in the page before navigation")
	flags.Bool("legacy-events", false, "Bind load/error with attachEvent/onload instead of addEventListener")
	flags.Bool("bridge", false, "Expose the loader to page scripts as <namespace>.loadScript")
	flags.String("namespace", "nz.ffx", "Namespace object the bridge installs loadScript on")
	flags.StringP("user-agent", "u", "web", "User Agent for static host fetches\n\tweb: random web user-agent\n\tmobi: random mobile user-agent\n\tor you can set your special user-agent")
	flags.StringP("output", "o", "", "File to append results to")
	flags.Bool("json", false, "Enable JSON output")
	flags.Bool("dump-head", false, "List script nodes in the document head after loading")
	flags.Bool("debug", false, "Turn on debug mode")
	flags.BoolP("verbose", "v", false, "Turn on verbose")
	flags.BoolP("quiet", "q", false, "Suppress all the output and only show results")
	flags.Bool("version", false, "Check version")
	flags.SortFlags = false
}

type Loader struct {
	cmd *cobra.Command
}

func NewLoader(cmd *cobra.Command) Loader {
	return Loader{cmd: cmd}
}

// Load merges flags, LOADSCRIPT_* env vars and the config file, in that
// order of precedence.
func (l Loader) Load() (Config, error) {
	var cfg Config
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(l.cmd.Flags()); err != nil {
		return cfg, fmt.Errorf("bind flags: %w", err)
	}
	if err := readConfigFile(v); err != nil {
		return cfg, err
	}

	cfg.Host = HostKind(strings.ToLower(strings.TrimSpace(v.GetString("host"))))
	cfg.Page = strings.TrimSpace(v.GetString("page"))
	cfg.Scripts = cleanList(v.GetStringSlice("script"))
	cfg.AsyncScripts = cleanList(v.GetStringSlice("async"))
	cfg.Wait = durationFrom(v, "wait", time.Second)
	cfg.NavigationTimeout = durationFrom(v, "nav-timeout", time.Second)
	cfg.FetchTimeout = durationFrom(v, "timeout", time.Second)
	cfg.Headless = v.GetBool("headless")
	cfg.BrowserBin = v.GetString("browser-bin")
	cfg.InitScripts = cleanList(v.GetStringSlice("init-script"))
	cfg.LegacyEvents = v.GetBool("legacy-events")
	cfg.Bridge = v.GetBool("bridge")
	cfg.Namespace = strings.TrimSpace(v.GetString("namespace"))
	cfg.UserAgent = v.GetString("user-agent")
	cfg.OutputFile = v.GetString("output")
	cfg.JSONOutput = v.GetBool("json")
	cfg.DumpHead = v.GetBool("dump-head")
	cfg.Debug = v.GetBool("debug")
	cfg.Verbose = v.GetBool("verbose")
	cfg.Quiet = v.GetBool("quiet")

	if listPath := strings.TrimSpace(v.GetString("scripts-file")); listPath != "" {
		lines, err := readLines(listPath)
		if err != nil {
			return cfg, err
		}
		cfg.Scripts = append(cfg.Scripts, lines...)
	}
	if cfg.OutputFile != "" {
		expanded, err := homedir.Expand(cfg.OutputFile)
		if err != nil {
			return cfg, fmt.Errorf("expand output path: %w", err)
		}
		cfg.OutputFile = expanded
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 12 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.Wait < 0 {
		cfg.Wait = 0
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "nz.ffx"
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Host {
	case HostBrowser, HostStatic:
	default:
		return fmt.Errorf("unknown host %q (want %s or %s)", c.Host, HostBrowser, HostStatic)
	}
	if c.Host == HostBrowser && c.Page == "" {
		return errors.New("browser host needs --page")
	}
	if c.Bridge && c.Host != HostBrowser {
		return errors.New("--bridge needs the browser host")
	}
	return nil
}

func readConfigFile(v *viper.Viper) error {
	if explicit := strings.TrimSpace(v.GetString("config")); explicit != "" {
		path, err := homedir.Expand(explicit)
		if err != nil {
			return fmt.Errorf("expand config path: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	}

	v.SetConfigName("loadscript")
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "loadscript"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("load config: %w", err)
		}
	}
	return nil
}

func readLines(path string) ([]string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand scripts file path: %w", err)
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("open scripts file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read scripts file: %w", err)
	}
	return lines, nil
}

func durationFrom(v *viper.Viper, name string, unit time.Duration) time.Duration {
	return time.Duration(v.GetInt(name)) * unit
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
