package main

import (
	"time"
)

// ResponseKind tags which variant a ResponseSource holds
type ResponseKind int

const (
	ResponseFixed    ResponseKind = iota // pick one canned string at random
	ResponseComputed                     // call the generator at reply time
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseFixed:
		return "fixed"
	case ResponseComputed:
		return "computed"
	default:
		return "unknown"
	}
}

// ResponseSource is either a list of canned replies or a generator.
// Build it with Fixed or Computed.
type ResponseSource struct {
	kind      ResponseKind
	responses []string
	compute   func() string
}

// Fixed returns a source that answers with one of responses, chosen at random
func Fixed(responses ...string) ResponseSource {
	return ResponseSource{
		kind:      ResponseFixed,
		responses: append([]string(nil), responses...),
	}
}

// Computed returns a source that calls fn every time a reply is needed
func Computed(fn func() string) ResponseSource {
	return ResponseSource{kind: ResponseComputed, compute: fn}
}

func (s ResponseSource) Kind() ResponseKind { return s.kind }

// KnowledgeEntry links a category to its trigger patterns and replies
type KnowledgeEntry struct {
	Category string
	Patterns []string
	Source   ResponseSource
}

// Clock reads the current time. Swapped out in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Rand picks an index in [0, n)
type Rand interface {
	IntN(n int) int
}

// RandFunc adapts a plain function to Rand
type RandFunc func(n int) int

func (f RandFunc) IntN(n int) int { return f(n) }

// Request/Response structures
type ChatRequest struct {
	Msg string `json:"msg" form:"msg" query:"msg"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

type ReloadResponse struct {
	Message    string        `json:"message"`
	Knowledge  KnowledgeInfo `json:"knowledge"`
	ReloadedAt time.Time     `json:"reloaded_at"`
}

// KnowledgeInfo describes the active knowledge base for the admin endpoint
type KnowledgeInfo struct {
	FilePath   string         `json:"file_path,omitempty"`
	LoadedAt   time.Time      `json:"loaded_at"`
	Fallback   string         `json:"fallback"`
	Categories []CategoryInfo `json:"categories"`
}

type CategoryInfo struct {
	Name      string `json:"name"`
	Patterns  int    `json:"patterns"`
	Responses string `json:"responses"` // "fixed" or "computed"
}

// matchResult stores information about a pattern match
type matchResult struct {
	entry  int // index into the knowledge base
	length int // pattern length in runes
}
