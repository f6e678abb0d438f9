package core

const (
	CLIName = "loadscript"
	AUTHOR  = "@j3ssiejjj"
	VERSION = "v0.3.0"
)

// DefaultNamespace is where the in-page bridge installs loadScript.
const DefaultNamespace = "nz.ffx"

// NodeIDAttribute tags every injected script node with its request id.
const NodeIDAttribute = "data-loadscript-id"
