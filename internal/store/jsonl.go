package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nao1215/onioncrawl/internal/model"
)

// maxLineSize bounds a single record when reading a results file.
const maxLineSize = 16 * 1024 * 1024

// JSONLStore appends results to a JSON Lines file.
type JSONLStore struct {
	path string

	mu     sync.Mutex
	file   *os.File
	closed bool
}

// OpenJSONL opens path for appending, creating it and its directory if
// needed. With truncate set, existing contents are discarded first; this is
// how a fresh run starts.
func OpenJSONL(path string, truncate bool) (*JSONLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o600) //nolint:gosec // user-configured output path
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	return &JSONLStore{path: path, file: f}, nil
}

// Path returns the results file path.
func (s *JSONLStore) Path() string {
	return s.path
}

// Append writes result as one line and syncs the file. Appends are
// serialized, so concurrent callers never interleave lines.
func (s *JSONLStore) Append(_ context.Context, result *model.Result) error {
	line, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("failed to append result: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync results file: %w", err)
	}
	return nil
}

// Close closes the file. Further appends fail with ErrClosed.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// ReadJSONL reads every complete record of a results file. Blank lines are
// skipped, and a final line without a newline is ignored because it may
// still be being written.
func ReadJSONL(path string) ([]model.Result, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-configured results path
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	if i := bytes.LastIndexByte(data, '\n'); i < len(data)-1 {
		data = data[:i+1]
	}

	var results []model.Result
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var r model.Result
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("%s:%d: invalid record: %w", path, lineNo, err)
		}
		results = append(results, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan results file: %w", err)
	}
	return results, nil
}
