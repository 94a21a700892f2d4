package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// knowledgeFile is the on-disk overlay for the built-in knowledge base
type knowledgeFile struct {
	Fallback   string              `json:"fallback"`
	Categories []knowledgeFileItem `json:"categories"`
}

type knowledgeFileItem struct {
	Name      string   `json:"name"`
	Patterns  []string `json:"patterns"`
	Responses []string `json:"responses"`
}

// KnowledgeStore holds the active responder and swaps it when the knowledge
// file changes. Each snapshot is immutable.
type KnowledgeStore struct {
	sync.RWMutex
	responder *Responder
	loadedAt  time.Time

	// reloadMu serializes whole reloads; the last to run reads the newest file
	reloadMu sync.Mutex

	filePath string
	clock    Clock
	rand     Rand
	loose    bool
	logger   zerolog.Logger
	debounce time.Duration
}

type StoreOption func(*KnowledgeStore)

func WithClock(c Clock) StoreOption {
	return func(ks *KnowledgeStore) { ks.clock = c }
}

func WithStoreRand(r Rand) StoreOption {
	return func(ks *KnowledgeStore) { ks.rand = r }
}

// WithStoreLooseMatching makes every snapshot's responder match loosely
func WithStoreLooseMatching(loose bool) StoreOption {
	return func(ks *KnowledgeStore) { ks.loose = loose }
}

func WithDebounce(d time.Duration) StoreOption {
	return func(ks *KnowledgeStore) { ks.debounce = d }
}

// NewKnowledgeStore builds the initial responder from the built-in entries
// and, when filePath is set, the knowledge file on top of them.
func NewKnowledgeStore(filePath string, logger zerolog.Logger, opts ...StoreOption) (*KnowledgeStore, error) {
	ks := &KnowledgeStore{
		filePath: filePath,
		clock:    systemClock{},
		logger:   logger,
		debounce: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(ks)
	}

	if err := ks.Reload(); err != nil {
		return nil, err
	}

	return ks, nil
}

// Responder returns the current snapshot
func (ks *KnowledgeStore) Responder() *Responder {
	ks.RLock()
	defer ks.RUnlock()
	return ks.responder
}

func (ks *KnowledgeStore) FilePath() string { return ks.filePath }

// Info describes the current snapshot
func (ks *KnowledgeStore) Info() KnowledgeInfo {
	ks.RLock()
	defer ks.RUnlock()

	kb := ks.responder.KnowledgeBase()
	return KnowledgeInfo{
		FilePath:   ks.filePath,
		LoadedAt:   ks.loadedAt,
		Fallback:   kb.Fallback(),
		Categories: kb.Info(),
	}
}

// Reload rebuilds the knowledge base. On error the previous snapshot stays.
// Concurrent reloads run one at a time, build and swap together.
func (ks *KnowledgeStore) Reload() error {
	ks.reloadMu.Lock()
	defer ks.reloadMu.Unlock()

	kb, err := buildKnowledgeBase(ks.filePath, ks.clock)
	if err != nil {
		return err
	}

	opts := []ResponderOption{WithLooseMatching(ks.loose)}
	if ks.rand != nil {
		opts = append(opts, WithRand(ks.rand))
	}
	responder := NewResponder(kb, opts...)

	ks.Lock()
	ks.responder = responder
	ks.loadedAt = ks.clock.Now()
	ks.Unlock()

	ks.logger.Info().
		Str("file", ks.filePath).
		Int("categories", len(kb.entries)).
		Msg("knowledge base loaded")

	return nil
}

func buildKnowledgeBase(filePath string, clock Clock) (*KnowledgeBase, error) {
	entries := DefaultEntries(clock)
	fallback := DefaultFallback

	if filePath == "" {
		return NewKnowledgeBase(fallback, entries...)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge file: %w", err)
	}

	var file knowledgeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge file: %w", err)
	}

	if strings.TrimSpace(file.Fallback) != "" {
		fallback = file.Fallback
	}
	entries, err = mergeEntries(entries, file.Categories)
	if err != nil {
		return nil, fmt.Errorf("invalid knowledge file %s: %w", filePath, err)
	}

	kb, err := NewKnowledgeBase(fallback, entries...)
	if err != nil {
		return nil, fmt.Errorf("invalid knowledge file %s: %w", filePath, err)
	}
	return kb, nil
}

// mergeEntries replaces built-in categories in place by name and appends new
// ones in file order
func mergeEntries(base []KnowledgeEntry, items []knowledgeFileItem) ([]KnowledgeEntry, error) {
	index := make(map[string]int, len(base))
	for i, entry := range base {
		index[entry.Category] = i
	}

	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return nil, ErrNoCategory
		}
		if len(item.Responses) == 0 {
			return nil, fmt.Errorf("%s: %w", name, ErrNoResponses)
		}

		entry := KnowledgeEntry{
			Category: name,
			Patterns: item.Patterns,
			Source:   Fixed(item.Responses...),
		}
		if i, ok := index[name]; ok {
			base[i] = entry
			continue
		}
		index[name] = len(base)
		base = append(base, entry)
	}

	return base, nil
}

// WatchFiles reloads the knowledge file whenever it is written or replaced.
// It blocks until ctx is done. Without a knowledge file it returns at once.
func (ks *KnowledgeStore) WatchFiles(ctx context.Context) error {
	if ks.filePath == "" {
		return nil
	}

	absPath, err := filepath.Abs(ks.filePath)
	if err != nil {
		return fmt.Errorf("failed to resolve knowledge file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are still seen
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch knowledge directory: %w", err)
	}

	ks.logger.Info().Str("file", absPath).Msg("file watcher started")

	// Debounce in this goroutine so no reload runs after we return
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-fire:
			fire = nil
			ks.logger.Info().Str("file", absPath).Msg("knowledge file changed, reloading")
			if err := ks.Reload(); err != nil {
				ks.logger.Error().Err(err).Msg("reload failed, keeping previous knowledge base")
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(ks.debounce)
			} else {
				timer.Reset(ks.debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				ks.logger.Warn().Err(err).Msg("file watcher overflow")
				continue
			}
			ks.logger.Error().Err(err).Msg("file watcher error")
		}
	}
}
