package storage

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"ordering_assistant/pkg"

	"github.com/bytedance/sonic"
)

// FileTurnLog writes one JSON-lines file per session under baseDir
type FileTurnLog struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileTurnLog creates the directory if needed
func NewFileTurnLog(baseDir string) (*FileTurnLog, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create turn log directory: %w", err)
	}
	return &FileTurnLog{baseDir: baseDir}, nil
}

func (f *FileTurnLog) path(key string) string {
	return filepath.Join(f.baseDir, url.PathEscape(key)+".jsonl")
}

// Append writes one line per turn
func (f *FileTurnLog) Append(_ context.Context, key string, seq uint64, turns ...pkg.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, entry := range toLogged(seq, turns) {
		data, err := sonic.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path(key), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open turn log: %w", err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write turn log: %w", err)
	}
	return file.Close()
}

// Load reads the session file; a missing file is an empty log
func (f *FileTurnLog) Load(_ context.Context, key string) ([]pkg.LoggedTurn, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path(key))
	f.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []pkg.LoggedTurn{}, nil
		}
		return nil, fmt.Errorf("failed to read turn log: %w", err)
	}

	entries := []pkg.LoggedTurn{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var entry pkg.LoggedTurn
		if err := sonic.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("failed to parse turn log line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan turn log: %w", err)
	}
	return entries, nil
}

// Delete removes the session file
func (f *FileTurnLog) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete turn log: %w", err)
	}
	return nil
}

func (f *FileTurnLog) Close() error { return nil }
