package core

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jaeles-project/loadscript/stringset"
)

// Output appends result lines to a file, skipping lines it already holds.
type Output struct {
	mu     sync.Mutex
	f      *os.File
	filter *stringset.StringFilter
}

func NewOutput(folder, filename string) (*Output, error) {
	return NewOutputPath(filepath.Join(folder, filename))
}

func NewOutputPath(filePath string) (*Output, error) {
	abspath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abspath), os.ModePerm); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.OpenFile(abspath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}

	out := &Output{
		f:      f,
		filter: stringset.NewStringFilter(),
	}
	out.loadExisting(abspath)
	return out, nil
}

func (o *Output) WriteToFile(msg string) {
	if strings.TrimSpace(msg) == "" {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.f == nil || o.filter.Duplicate(msg) {
		return
	}
	_, _ = o.f.WriteString(msg + "\n")
}

func (o *Output) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f != nil {
		_ = o.f.Close()
		o.f = nil
	}
}

func (o *Output) loadExisting(path string) {
	reader, err := os.Open(path)
	if err != nil {
		return
	}
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		_ = o.filter.Duplicate(line)
	}
}
