package main

import (
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// arithmeticPattern finds "<number> <op> <number>" anywhere in a message.
// Digits and spacing are any Unicode decimal digit and whitespace.
var arithmeticPattern = regexp.MustCompile(
	`(\p{Nd}+\.?\p{Nd}*)[\s\p{Z}\x{1c}-\x{1f}\x{85}]*([+\-*/])[\s\p{Z}\x{1c}-\x{1f}\x{85}]*(\p{Nd}+\.?\p{Nd}*)`,
)

const divideByZero = "Cannot divide by zero"

// Responder maps one message to one reply. It holds no mutable state and is
// safe for concurrent use as long as its Rand is.
type Responder struct {
	kb    *KnowledgeBase
	rand  Rand
	loose bool

	// patterns in comparison form, indexed like kb.entries
	patterns [][]string
}

type ResponderOption func(*Responder)

// WithRand sets the source used to pick among canned replies
func WithRand(r Rand) ResponderOption {
	return func(rs *Responder) {
		rs.rand = r
	}
}

// WithLooseMatching also NFKC-normalizes text and collapses whitespace before
// comparing. Off by default: plain lower-cased substring matching.
func WithLooseMatching(loose bool) ResponderOption {
	return func(rs *Responder) {
		rs.loose = loose
	}
}

// NewResponder creates a responder over kb. Canned replies are picked with
// the package-level math/rand/v2 source unless WithRand is given.
func NewResponder(kb *KnowledgeBase, opts ...ResponderOption) *Responder {
	r := &Responder{
		kb:   kb,
		rand: RandFunc(rand.IntN),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.patterns = make([][]string, len(kb.entries))
	for i, entry := range kb.entries {
		if !r.loose {
			r.patterns[i] = entry.Patterns
			continue
		}
		patterns := make([]string, 0, len(entry.Patterns))
		for _, p := range entry.Patterns {
			patterns = append(patterns, looseText(p))
		}
		r.patterns[i] = patterns
	}
	return r
}

func (r *Responder) KnowledgeBase() *KnowledgeBase { return r.kb }

// Respond always returns a non-empty reply. Arithmetic wins over
// classification; no match yields the fallback.
func (r *Responder) Respond(message string) string {
	if answer, ok := EvaluateArithmetic(message); ok {
		return answer
	}

	if entry, ok := r.classify(message); ok {
		if reply := r.resolve(entry.Source); reply != "" {
			return reply
		}
	}

	return r.kb.fallback
}

// Classify returns the category owning the longest pattern found in message.
// Equal lengths keep the earlier declared category.
func (r *Responder) Classify(message string) (string, bool) {
	entry, ok := r.classify(message)
	if !ok {
		return "", false
	}
	return entry.Category, true
}

func (r *Responder) classify(message string) (KnowledgeEntry, bool) {
	text := lowerText(message)
	if r.loose {
		text = looseText(message)
	}

	best := r.findBestMatch(text)
	if best == nil {
		return KnowledgeEntry{}, false
	}
	return r.kb.entries[best.entry], true
}

// findBestMatch scans categories and patterns in declaration order.
// Only a strictly longer pattern replaces the current best.
func (r *Responder) findBestMatch(text string) *matchResult {
	var bestMatch *matchResult

	for i, patterns := range r.patterns {
		for _, pattern := range patterns {
			if !strings.Contains(text, pattern) {
				continue
			}
			length := utf8.RuneCountInString(pattern)
			if bestMatch == nil || length > bestMatch.length {
				bestMatch = &matchResult{entry: i, length: length}
			}
		}
	}

	return bestMatch
}

func (r *Responder) resolve(source ResponseSource) string {
	switch source.kind {
	case ResponseComputed:
		return source.compute()
	case ResponseFixed:
		n := len(source.responses)
		if n == 0 {
			return ""
		}
		i := r.rand.IntN(n)
		if i < 0 || i >= n {
			i = 0
		}
		return source.responses[i]
	default:
		return ""
	}
}

// EvaluateArithmetic computes the first "<a> <op> <b>" expression in message.
// Division by zero is reported in the reply, not as an error.
func EvaluateArithmetic(message string) (string, bool) {
	m := arithmeticPattern.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}

	a, ok := parseOperand(m[1])
	if !ok {
		return "", false
	}
	b, ok := parseOperand(m[3])
	if !ok {
		return "", false
	}

	var result string
	switch m[2] {
	case "+":
		result = formatNumber(a + b)
	case "-":
		result = formatNumber(a - b)
	case "*":
		result = formatNumber(a * b)
	case "/":
		if b == 0 {
			result = divideByZero
		} else {
			result = formatNumber(a / b)
		}
	default:
		return "", false
	}

	return "The answer is: " + result + " 🔢", true
}

// parseOperand accepts any Unicode decimal digits and literals too large for
// float64, which become +Inf
func parseOperand(s string) (float64, bool) {
	f, err := strconv.ParseFloat(asciiDigits(s), 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f, true
		}
		return 0, false
	}
	return f, true
}

// formatNumber renders the shortest round-trip form, always with a decimal
// point in plain notation: 4.0, 2.5, 0.0001, 1e-05, 1e+16, inf.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err == nil && (exp < -4 || exp >= 16) {
		return sci
	}

	plain := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(plain, '.') {
		plain += ".0"
	}
	return plain
}

// asciiDigits rewrites Unicode decimal digits as 0-9. Decimal digits come in
// contiguous runs starting at zero, so a digit's value is its distance from
// the start of its run, mod 10.
func asciiDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= unicode.MaxASCII || !unicode.Is(unicode.Nd, r) {
			return r
		}
		zero := r
		for unicode.Is(unicode.Nd, zero-1) {
			zero--
		}
		return '0' + (r-zero)%10
	}, s)
}
