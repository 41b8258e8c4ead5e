// Package matcher decides whether a wrestler is mentioned in a piece of text.
//
// Matching is heuristic: an alias table, whole-word name matching, surname and
// proximity rules, and a relaxed first/last-name pass that only applies to text
// that already reads as wrestling coverage. False positives and negatives are
// expected.
package matcher

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

const (
	DefaultProximityWindow    = 200
	DefaultContextTokenMinLen = 3
)

// Config is the tunable matching lexicon.
type Config struct {
	Aliases             map[string][]string `yaml:"aliases"`
	DistinctiveSurnames []string            `yaml:"distinctive_surnames"`
	ContextTerms        []string            `yaml:"context_terms"`
	CommonFirstNames    []string            `yaml:"common_first_names"`
	ProximityWindow     int                 `yaml:"proximity_window"`
	ContextTokenMinLen  int                 `yaml:"context_token_min_len"`
}

// DefaultConfig returns a fresh copy of the embedded lexicon.
func DefaultConfig() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultLexicon, &cfg); err != nil {
		panic(fmt.Sprintf("matcher: embedded lexicon is invalid: %v", err))
	}
	return cfg
}

// Matcher implements the name-matching rules over a Config.
// It is safe for concurrent use.
type Matcher struct {
	aliases    map[string][]string
	surnames   map[string]struct{}
	firstNames map[string]struct{}
	context    []string
	automaton  *ahocorasick.Matcher
	window     int
	minLen     int

	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

// New builds a Matcher. Zero numeric settings fall back to the defaults.
func New(cfg Config) *Matcher {
	m := &Matcher{
		aliases:    make(map[string][]string, len(cfg.Aliases)),
		surnames:   toSet(cfg.DistinctiveSurnames),
		firstNames: toSet(cfg.CommonFirstNames),
		window:     cfg.ProximityWindow,
		minLen:     cfg.ContextTokenMinLen,
		patterns:   make(map[string]*regexp.Regexp),
	}
	if m.window <= 0 {
		m.window = DefaultProximityWindow
	}
	if m.minLen <= 0 {
		m.minLen = DefaultContextTokenMinLen
	}

	for name, aliases := range cfg.Aliases {
		key := normalize(name)
		for _, a := range aliases {
			if a = normalize(a); a != "" {
				m.aliases[key] = append(m.aliases[key], a)
			}
		}
	}

	seen := make(map[string]struct{}, len(cfg.ContextTerms))
	for _, term := range cfg.ContextTerms {
		term = normalize(term)
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		m.context = append(m.context, term)
	}
	if len(m.context) > 0 {
		m.automaton = ahocorasick.NewStringMatcher(m.context)
	}

	return m
}

// IsMentioned reports whether name is mentioned in text.
func (m *Matcher) IsMentioned(name, text string) bool {
	name = normalize(name)
	if name == "" || strings.TrimSpace(text) == "" {
		return false
	}
	lower := strings.ToLower(text)

	for _, alias := range m.aliases[name] {
		if m.wordMatch(alias, lower) {
			return true
		}
	}

	tokens := strings.Fields(name)
	if len(tokens) == 1 {
		return len(tokens[0]) > 2 && m.wordMatch(tokens[0], lower)
	}

	first, last := tokens[0], tokens[len(tokens)-1]

	if m.wordMatch(name, lower) {
		return true
	}
	if m.pattern(wordPattern(first)+`\s+`+wordPattern(last)).MatchString(lower) {
		return true
	}
	if _, ok := m.surnames[last]; ok && len(last) > 3 && m.wordMatch(last, lower) {
		return true
	}
	if m.near(first, last, lower) {
		return true
	}

	if !m.HasWrestlingContext(lower) {
		return false
	}
	for _, tok := range []string{first, last} {
		if len(tok) >= m.minLen && m.wordMatch(tok, lower) {
			return true
		}
	}
	if _, ok := m.firstNames[first]; ok && m.wordMatch(first, lower) {
		return true
	}
	return false
}

// HasWrestlingContext reports whether text contains any context term as a
// whole word.
func (m *Matcher) HasWrestlingContext(text string) bool {
	if m.automaton == nil {
		return false
	}
	lower := strings.ToLower(text)
	for _, idx := range m.automaton.MatchThreadSafe([]byte(lower)) {
		if m.wordMatch(m.context[idx], lower) {
			return true
		}
	}
	return false
}

// near reports whether first and last both occur within the proximity window.
func (m *Matcher) near(first, last, text string) bool {
	firstHits := m.pattern(wordPattern(first)).FindAllStringIndex(text, -1)
	if len(firstHits) == 0 {
		return false
	}
	lastHits := m.pattern(wordPattern(last)).FindAllStringIndex(text, -1)
	for _, f := range firstHits {
		for _, l := range lastHits {
			d := l[0] - f[0]
			if d < 0 {
				d = -d
			}
			if d <= m.window {
				return true
			}
		}
	}
	return false
}

func (m *Matcher) wordMatch(term, text string) bool {
	return m.pattern(wordPattern(term)).MatchString(text)
}

func (m *Matcher) pattern(expr string) *regexp.Regexp {
	m.mu.RLock()
	re, ok := m.patterns[expr]
	m.mu.RUnlock()
	if ok {
		return re
	}

	re = regexp.MustCompile(expr)
	m.mu.Lock()
	m.patterns[expr] = re
	m.mu.Unlock()
	return re
}

// wordPattern quotes term and anchors it on word boundaries. A boundary is
// only added next to an ASCII word character since RE2's \b is ASCII-only.
func wordPattern(term string) string {
	parts := strings.Fields(term)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	expr := strings.Join(parts, `\s+`)
	if isWordByte(term[0]) {
		expr = `\b` + expr
	}
	if isWordByte(term[len(term)-1]) {
		expr += `\b`
	}
	return expr
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it = normalize(it); it != "" {
			set[it] = struct{}{}
		}
	}
	return set
}
