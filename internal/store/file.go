package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/quantfold/gexengine/internal/chain"
)

// FileSnapshotStore serves snapshots out of per-symbol JSONL files,
// loading each symbol into memory on first use.
type FileSnapshotStore struct {
	dir    string
	logger *zap.Logger

	mu     sync.Mutex
	loaded map[string]*MemorySnapshotStore
}

func NewFileSnapshotStore(dir string, logger *zap.Logger) *FileSnapshotStore {
	return &FileSnapshotStore{
		dir:    dir,
		logger: logger,
		loaded: make(map[string]*MemorySnapshotStore),
	}
}

func (f *FileSnapshotStore) forSymbol(symbol string) (*MemorySnapshotStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if mem, ok := f.loaded[symbol]; ok {
		return mem, nil
	}
	mem, err := LoadSnapshotFile(f.dir, symbol, f.logger)
	if err != nil {
		return nil, err
	}
	f.loaded[symbol] = mem
	return mem, nil
}

func (f *FileSnapshotStore) SnapshotTimes(ctx context.Context, symbol string) ([]time.Time, error) {
	mem, err := f.forSymbol(symbol)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return mem.SnapshotTimes(ctx, symbol)
}

func (f *FileSnapshotStore) ChainAt(ctx context.Context, symbol string, at time.Time) (*chain.Chain, error) {
	mem, err := f.forSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return mem.ChainAt(ctx, symbol, at)
}

// SaveSnapshot appends one snapshot line to the symbol's JSONL file.
func (f *FileSnapshotStore) SaveSnapshot(ctx context.Context, at time.Time, ch *chain.Chain) error {
	path := filepath.Join(f.dir, ch.Symbol+".jsonl")
	if err := os.MkdirAll(f.dir, 0750); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	payload, err := ch.WirePayload()
	if err != nil {
		return fmt.Errorf("marshal chain: %w", err)
	}
	line, err := json.Marshal(snapshotLine{SnapshotTime: at, Chain: payload})
	if err != nil {
		return fmt.Errorf("marshal snapshot line: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return fmt.Errorf("opening snapshot file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending snapshot: %w", err)
	}

	// Invalidate the in-memory copy so the next read picks the new line up.
	f.mu.Lock()
	delete(f.loaded, ch.Symbol)
	f.mu.Unlock()
	return nil
}

// snapshotLine is one JSONL record: a timestamp plus the raw chain payload
// (either wire shape, resolved by chain.Parse).
type snapshotLine struct {
	SnapshotTime time.Time       `json:"snapshotTime"`
	Chain        json.RawMessage `json:"chain"`
}

// LoadSnapshotFile reads chain snapshots for one symbol from
// {dir}/{symbol}.jsonl or {dir}/{symbol}.jsonl.zst into a memory store.
// Unparseable lines are logged and skipped, not fatal.
func LoadSnapshotFile(dir, symbol string, logger *zap.Logger) (*MemorySnapshotStore, error) {
	path := filepath.Join(dir, symbol+".jsonl")
	compressed := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = filepath.Join(dir, symbol+".jsonl.zst")
		compressed = true
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if compressed {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer dec.Close()
		reader = dec
	}

	mem := NewMemorySnapshotStore()
	scanner := bufio.NewScanner(reader)

	// Full chains can be large lines
	buf := make([]byte, 0, 256*1024)
	scanner.Buffer(buf, 16*1024*1024)

	lineNum := 0
	loaded := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec snapshotLine
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warn("skipping bad snapshot line", zap.Int("line", lineNum), zap.Error(err))
			continue
		}

		ch, err := chain.Parse(rec.Chain)
		if err != nil {
			logger.Warn("skipping unparseable chain", zap.Int("line", lineNum), zap.Error(err))
			continue
		}
		if ch.Symbol == "" {
			ch.Symbol = symbol
		}

		if err := mem.SaveSnapshot(context.Background(), rec.SnapshotTime, ch); err != nil {
			return nil, err
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	logger.Info("loaded snapshot file",
		zap.String("path", path),
		zap.Int("snapshots", loaded),
	)
	return mem, nil
}
