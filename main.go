package main

import (
	"os"

	"github.com/jaeles-project/loadscript/cmd"
	"github.com/jaeles-project/loadscript/core"
)

func main() {
	if err := cmd.Execute(); err != nil {
		core.Logger.Error(err)
		os.Exit(1)
	}
}
