package config

import "time"

type HostKind string

const (
	HostBrowser HostKind = "browser"
	HostStatic  HostKind = "static"
)

// Config captures every option that shapes one loadscript run.
type Config struct {
	Host              HostKind
	Page              string
	Scripts           []string
	AsyncScripts      []string
	Wait              time.Duration
	NavigationTimeout time.Duration
	FetchTimeout      time.Duration
	Headless          bool
	BrowserBin        string
	InitScripts       []string
	LegacyEvents      bool
	Bridge            bool
	Namespace         string
	UserAgent         string
	OutputFile        string
	JSONOutput        bool
	DumpHead          bool
	Debug             bool
	Verbose           bool
	Quiet             bool
}
