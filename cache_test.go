package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testKnowledge = `{
  "fallback": "Try asking about the weather.",
  "categories": [
    {"name": "weather", "patterns": ["weather", "forecast"], "responses": ["Sunny all week!"]},
    {"name": "greetings", "patterns": ["howdy"], "responses": ["Howdy partner!"]}
  ]
}`

func writeKnowledge(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write knowledge file: %v", err)
	}
}

func newTestStore(t *testing.T, path string, opts ...StoreOption) *KnowledgeStore {
	t.Helper()
	opts = append([]StoreOption{
		WithClock(fixedClock{testTime}),
		WithStoreRand(RandFunc(func(int) int { return 0 })),
	}, opts...)
	store, err := NewKnowledgeStore(path, zerolog.New(io.Discard), opts...)
	if err != nil {
		t.Fatalf("NewKnowledgeStore: %v", err)
	}
	return store
}

func TestKnowledgeStoreBuiltinOnly(t *testing.T) {
	store := newTestStore(t, "")

	info := store.Info()
	if len(info.Categories) != 14 {
		t.Errorf("expected 14 built-in categories, got %d", len(info.Categories))
	}
	if info.FilePath != "" {
		t.Errorf("expected no file path, got %q", info.FilePath)
	}
	if got := store.Responder().Respond("hello"); got != "Hello! How can I assist you today? 😊" {
		t.Errorf("got %q", got)
	}
	if !info.LoadedAt.Equal(testTime) {
		t.Errorf("loaded_at should come from the store clock, got %v", info.LoadedAt)
	}
}

func TestKnowledgeStoreLooseMatching(t *testing.T) {
	strict := newTestStore(t, "")
	if got := strict.Responder().Respond("ＨＥＬＬＯ"); got != DefaultFallback {
		t.Errorf("strict store: got %q", got)
	}

	loose := newTestStore(t, "", WithStoreLooseMatching(true))
	if got := loose.Responder().Respond("ＨＥＬＬＯ"); got != "Hello! How can I assist you today? 😊" {
		t.Errorf("loose store: got %q", got)
	}
	if err := loose.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := loose.Responder().Respond("how  are   you"); got != "I'm doing great, thank you for asking! How can I help you today?" {
		t.Errorf("loose store after reload: got %q", got)
	}
}

func TestKnowledgeStoreFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	writeKnowledge(t, path, testKnowledge)

	store := newTestStore(t, path)
	r := store.Responder()

	if got := r.Respond("what's the forecast"); got != "Sunny all week!" {
		t.Errorf("weather reply: %q", got)
	}
	// greetings replaced in place, so "hello" no longer matches it
	if got := r.Respond("howdy"); got != "Howdy partner!" {
		t.Errorf("greeting reply: %q", got)
	}
	if got := r.Respond("hello"); got != "Try asking about the weather." {
		t.Errorf("expected file fallback, got %q", got)
	}

	info := store.Info()
	if info.Categories[0].Name != "greetings" {
		t.Errorf("greetings should keep its position, got %q", info.Categories[0].Name)
	}
	last := info.Categories[len(info.Categories)-1]
	if last.Name != "weather" {
		t.Errorf("new categories should be appended, got %q", last.Name)
	}
}

func TestKnowledgeStoreInvalidFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"bad json", `{"categories": [`, "failed to parse knowledge file"},
		{"no name", `{"categories": [{"patterns": ["x"], "responses": ["y"]}]}`, "category name is empty"},
		{"no patterns", `{"categories": [{"name": "x", "responses": ["y"]}]}`, "no patterns"},
		{"no responses", `{"categories": [{"name": "x", "patterns": ["y"]}]}`, "no responses"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".json")
			writeKnowledge(t, path, tt.content)

			_, err := NewKnowledgeStore(path, zerolog.New(io.Discard))
			if err == nil || !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("expected error containing %q, got %v", tt.errText, err)
			}
		})
	}

	if _, err := NewKnowledgeStore(filepath.Join(dir, "missing.json"), zerolog.New(io.Discard)); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestKnowledgeStoreReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	writeKnowledge(t, path, testKnowledge)
	store := newTestStore(t, path)

	writeKnowledge(t, path, `not json`)
	if err := store.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if got := store.Responder().Respond("forecast"); got != "Sunny all week!" {
		t.Errorf("previous knowledge should stay active, got %q", got)
	}

	writeKnowledge(t, path, `{"categories": [{"name": "weather", "patterns": ["forecast"], "responses": ["Rain."]}]}`)
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := store.Responder().Respond("forecast"); got != "Rain." {
		t.Errorf("got %q", got)
	}
}

func TestKnowledgeStoreConcurrentReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	writeKnowledge(t, path, testKnowledge)
	store := newTestStore(t, path)

	writeKnowledge(t, path, `{"categories": [{"name": "weather", "patterns": ["forecast"], "responses": ["Hail."]}]}`)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Reload(); err != nil {
				t.Errorf("Reload: %v", err)
			}
			// Readers always see a whole snapshot
			if got := store.Responder().Respond("forecast"); got != "Hail." {
				t.Errorf("got %q", got)
			}
		}()
	}
	wg.Wait()

	info := store.Info()
	if len(info.Categories) != 15 {
		t.Errorf("expected 15 categories, got %d", len(info.Categories))
	}
}

func TestKnowledgeStoreWatchFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	writeKnowledge(t, path, testKnowledge)
	store := newTestStore(t, path, WithDebounce(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.WatchFiles(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("WatchFiles: %v", err)
		}
	}()

	// Give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	writeKnowledge(t, path, `{"categories": [{"name": "weather", "patterns": ["forecast"], "responses": ["Snow."]}]}`)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if store.Responder().Respond("forecast") == "Snow." {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("knowledge file change was not picked up")
}

func TestWatchFilesNoReloadAfterCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	writeKnowledge(t, path, testKnowledge)
	store := newTestStore(t, path, WithDebounce(200*time.Millisecond))
	before := store.Responder()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.WatchFiles(ctx) }()

	time.Sleep(100 * time.Millisecond)
	writeKnowledge(t, path, `{"categories": [{"name": "weather", "patterns": ["forecast"], "responses": ["Snow."]}]}`)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("WatchFiles: %v", err)
	}

	// Outlast the debounce: a pending reload must not fire once the watcher is gone
	time.Sleep(400 * time.Millisecond)
	if store.Responder() != before {
		t.Error("knowledge was reloaded after WatchFiles returned")
	}
}

func TestWatchFilesWithoutFile(t *testing.T) {
	store := newTestStore(t, "")
	if err := store.WatchFiles(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
