package main

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DefaultFallback is returned when nothing in the knowledge base matches
const DefaultFallback = "I'm here to help! I can answer questions about AI/ML, programming, databases, testing, CSE, mathematics, grammar, and more. What would you like to know? 🤔"

var (
	ErrNoPatterns  = errors.New("category has no patterns")
	ErrNoResponses = errors.New("category has no responses")
	ErrNoCategory  = errors.New("category name is empty")
)

// KnowledgeBase is an ordered, immutable set of categories. Declaration
// order decides ties during classification.
type KnowledgeBase struct {
	entries  []KnowledgeEntry
	fallback string
}

// NewKnowledgeBase validates and copies entries. Patterns are lower-cased the
// same way incoming messages are; blank patterns are dropped. An empty
// fallback means DefaultFallback.
func NewKnowledgeBase(fallback string, entries ...KnowledgeEntry) (*KnowledgeBase, error) {
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultFallback
	}

	kb := &KnowledgeBase{
		entries:  make([]KnowledgeEntry, 0, len(entries)),
		fallback: fallback,
	}

	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.Category) == "" {
			return nil, ErrNoCategory
		}
		if seen[entry.Category] {
			return nil, fmt.Errorf("duplicate category %q", entry.Category)
		}
		seen[entry.Category] = true

		patterns := make([]string, 0, len(entry.Patterns))
		for _, p := range entry.Patterns {
			if strings.TrimSpace(p) != "" {
				patterns = append(patterns, lowerText(p))
			}
		}
		if len(patterns) == 0 {
			return nil, fmt.Errorf("%s: %w", entry.Category, ErrNoPatterns)
		}

		switch entry.Source.kind {
		case ResponseFixed:
			if len(entry.Source.responses) == 0 {
				return nil, fmt.Errorf("%s: %w", entry.Category, ErrNoResponses)
			}
		case ResponseComputed:
			if entry.Source.compute == nil {
				return nil, fmt.Errorf("%s: %w", entry.Category, ErrNoResponses)
			}
		default:
			return nil, fmt.Errorf("%s: unknown response kind %d", entry.Category, entry.Source.kind)
		}

		kb.entries = append(kb.entries, KnowledgeEntry{
			Category: entry.Category,
			Patterns: patterns,
			Source:   entry.Source,
		})
	}

	return kb, nil
}

// Entries returns a copy of the entries in declaration order
func (kb *KnowledgeBase) Entries() []KnowledgeEntry {
	return append([]KnowledgeEntry(nil), kb.entries...)
}

func (kb *KnowledgeBase) Fallback() string { return kb.fallback }

// Info summarizes the knowledge base for the admin endpoint
func (kb *KnowledgeBase) Info() []CategoryInfo {
	info := make([]CategoryInfo, 0, len(kb.entries))
	for _, entry := range kb.entries {
		info = append(info, CategoryInfo{
			Name:      entry.Category,
			Patterns:  len(entry.Patterns),
			Responses: entry.Source.kind.String(),
		})
	}
	return info
}

// DefaultEntries is the built-in knowledge. time and date read clock on
// every reply.
func DefaultEntries(clock Clock) []KnowledgeEntry {
	return []KnowledgeEntry{
		{
			Category: "greetings",
			Patterns: []string{"hello", "hi", "hey", "greetings", "good morning", "good afternoon", "good evening"},
			Source: Fixed(
				"Hello! How can I assist you today? 😊",
				"Hi there! What can I help you with?",
				"Hey! Great to see you! How may I help?",
			),
		},
		{
			Category: "farewells",
			Patterns: []string{"bye", "goodbye", "see you", "farewell", "later"},
			Source: Fixed(
				"Goodbye! Have a wonderful day! 👋",
				"See you later! Feel free to return anytime!",
				"Take care! Come back whenever you need help!",
			),
		},
		{
			Category: "thanks",
			Patterns: []string{"thank", "thanks", "appreciate"},
			Source: Fixed(
				"You're welcome! Happy to help! 😊",
				"My pleasure! Anything else I can assist with?",
			),
		},
		{
			Category: "how_are_you",
			Patterns: []string{"how are you", "how do you do", "hows it going"},
			Source: Fixed(
				"I'm doing great, thank you for asking! How can I help you today?",
				"I'm functioning perfectly and ready to assist!",
			),
		},
		{
			Category: "ai",
			Patterns: []string{"artificial intelligence", "machine learning", "what is ai", "tell me about ai"},
			Source: Fixed("Artificial Intelligence (AI) is the simulation of human intelligence by machines. It includes:\n\n" +
				"• Machine Learning - Learning from data\n• Deep Learning - Neural networks\n" +
				"• NLP - Understanding language\n• Computer Vision - Understanding images\n\n" +
				"AI powers everything from voice assistants to self-driving cars! 🤖"),
		},
		{
			Category: "nlp",
			Patterns: []string{"natural language processing", "nlp", "what is nlp"},
			Source: Fixed("Natural Language Processing (NLP) enables computers to understand and generate human language! 💬\n\n" +
				"Key techniques:\n• Tokenization\n• Named Entity Recognition\n• Sentiment Analysis\n• Text Generation\n\n" +
				"I use NLP to understand you!"),
		},
		{
			Category: "programming",
			Patterns: []string{"programming", "coding", "python", "java", "javascript"},
			Source: Fixed("Popular Programming Languages:\n\n" +
				"• Python - Versatile, great for AI/ML\n• Java - Enterprise applications\n" +
				"• JavaScript - Web development\n• C++ - Performance-critical apps\n\n" +
				"Each has unique strengths! 💻"),
		},
		{
			Category: "database",
			Patterns: []string{"database", "sql", "nosql", "mysql", "mongodb", "dbms"},
			Source: Fixed("Databases store and manage data! 🗄️\n\n" +
				"SQL Databases: MySQL, PostgreSQL, Oracle\nNoSQL Databases: MongoDB, Cassandra, Redis\n\n" +
				"SQL uses structured tables, NoSQL offers flexibility!"),
		},
		{
			Category: "testing",
			Patterns: []string{"testing", "software testing", "qa", "selenium"},
			Source: Fixed("Software Testing ensures quality! ✅\n\n" +
				"Test Types:\n• Unit Testing\n• Integration Testing\n• System Testing\n• Acceptance Testing\n\n" +
				"Tools: Selenium, JUnit, PyTest, Jest"),
		},
		{
			Category: "cse",
			Patterns: []string{"computer science", "cse", "computer engineering"},
			Source: Fixed("Computer Science Engineering covers:\n\n" +
				"• Programming\n• Data Structures & Algorithms\n• Operating Systems\n" +
				"• Computer Networks\n• Database Management\n• AI/ML\n• Cybersecurity 💻"),
		},
		{
			Category: "math",
			Patterns: []string{"mathematics", "calculus", "algebra", "statistics"},
			Source: Fixed("Mathematics Topics:\n\n" +
				"• Calculus - Derivatives, Integrals\n• Algebra - Equations, Matrices\n" +
				"• Statistics - Probability, Analysis\n• Geometry - Shapes, Areas\n\n" +
				"Math is the language of science! 📐"),
		},
		{
			Category: "grammar",
			Patterns: []string{"grammar", "english grammar", "tenses"},
			Source: Fixed("English Grammar Basics:\n\n" +
				"• Nouns - Person/place/thing\n• Verbs - Actions\n• Adjectives - Describe nouns\n" +
				"• Adverbs - Describe verbs\n• 12 Tenses (Present, Past, Future) 📝"),
		},
		{
			Category: "time",
			Patterns: []string{"time", "what time", "current time"},
			Source: Computed(func() string {
				return "The current time is " + clock.Now().Format("03:04:05 PM") + " ⏰"
			}),
		},
		{
			Category: "date",
			Patterns: []string{"date", "today", "what day"},
			Source: Computed(func() string {
				return "Today is " + clock.Now().Format("Monday, January 02, 2006") + " 📅"
			}),
		},
	}
}

// DefaultKnowledgeBase builds the built-in knowledge base
func DefaultKnowledgeBase(clock Clock) *KnowledgeBase {
	kb, err := NewKnowledgeBase(DefaultFallback, DefaultEntries(clock)...)
	if err != nil {
		// built-in entries are static, so this is a programming error
		panic(err)
	}
	return kb
}

// lowerText is the default comparison form: Unicode lower-casing and
// nothing else, so spacing and combining marks are compared as typed.
func lowerText(text string) string {
	// Casers keep state, so one per call
	return cases.Lower(language.Und).String(text)
}

// looseText is the opt-in comparison form
// - Unicode normalization (NFKC)
// - Lowercase conversion
// - Whitespace normalization
func looseText(text string) string {
	text = lowerText(norm.NFKC.String(text))

	// Collapse unicode whitespace runs into one space
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}

	return b.String()
}
