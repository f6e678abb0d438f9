package cmd

import (
	"context"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/jaeles-project/loadscript/core"
)

type ScriptResult struct {
	Page   string `json:"page,omitempty"`
	URL    string `json:"url"`
	Async  bool   `json:"async"`
	Status string `json:"status"`
}

type HeadOutput struct {
	Source string `json:"source"`
	Src    string `json:"src"`
	Async  bool   `json:"async"`
	ID     string `json:"id,omitempty"`
}

func renderResult(result ScriptResult, asJSON bool) string {
	if asJSON {
		if data, err := jsoniter.MarshalToString(result); err == nil {
			return data
		}
	}
	return fmt.Sprintf("[%s] - %s", result.Status, result.URL)
}

func dumpHead(ctx context.Context, w io.Writer, doc document, asJSON bool) error {
	nodes, err := doc.headScripts(ctx)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		source := "head"
		if injected(node) {
			source = "injected"
		}
		line := fmt.Sprintf("[%s] - %s", source, node.Src)
		if node.Async {
			line += " (async)"
		}
		if asJSON {
			if data, err := jsoniter.MarshalToString(HeadOutput{Source: source, Src: node.Src, Async: node.Async, ID: node.ID}); err == nil {
				line = data
			}
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// injected reports whether node came from a loader rather than the page.
func injected(node core.ScriptNode) bool {
	return node.ID != ""
}
