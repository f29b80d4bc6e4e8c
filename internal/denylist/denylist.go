// Package denylist flags pages whose host appears in a flat file of known-bad
// domains.
//
// The file holds one domain per line. Blank lines and lines starting with
// "#" are ignored, and a leading "*." or "." on a domain is accepted and
// dropped. A host matches when it equals a listed domain or is a subdomain of
// one; comparison is case-insensitive.
package denylist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/onioncrawl/internal/onion"
)

// ErrRead is returned when the denylist file cannot be read.
var ErrRead = errors.New("failed to read denylist")

// List is an immutable set of denied domains.
type List struct {
	domains map[string]struct{}
}

// Parse reads a denylist from r.
func Parse(r io.Reader) (*List, error) {
	l := &List{domains: make(map[string]struct{})}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "*.")
		line = strings.TrimPrefix(line, ".")
		if line != "" {
			l.domains[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return l, nil
}

// Len returns the number of listed domains.
func (l *List) Len() int {
	return len(l.domains)
}

// Contains reports whether host or one of its parent domains is listed.
func (l *List) Contains(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	for host != "" {
		if _, ok := l.domains[host]; ok {
			return true
		}
		_, parent, found := strings.Cut(host, ".")
		if !found {
			return false
		}
		host = parent
	}
	return false
}

// FileChecker checks URLs against a denylist file. The file is re-read
// whenever its modification time or size changes, so edits take effect
// during a running crawl. It is safe for concurrent use.
type FileChecker struct {
	path string

	mu      sync.Mutex
	list    *List
	modTime time.Time
	size    int64
}

// NewFileChecker returns a checker for the file at path. The file is not
// read until the first check.
func NewFileChecker(path string) *FileChecker {
	return &FileChecker{path: path}
}

// Path returns the denylist file path.
func (c *FileChecker) Path() string {
	return c.path
}

// IsDenied reports whether the host of rawURL is listed. If the file cannot
// be read the result is false together with an error wrapping ErrRead.
func (c *FileChecker) IsDenied(rawURL string) (bool, error) {
	list, err := c.load()
	if err != nil {
		return false, err
	}
	return list.Contains(onion.Host(rawURL)), nil
}

// load returns the current list, re-reading the file when it changed.
func (c *FileChecker) load() (*List, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := os.Stat(c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if c.list != nil && info.ModTime().Equal(c.modTime) && info.Size() == c.size {
		return c.list, nil
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer f.Close()

	list, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, c.path, err)
	}
	c.list, c.modTime, c.size = list, info.ModTime(), info.Size()
	return list, nil
}
