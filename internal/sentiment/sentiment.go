// Package sentiment scores text with a wrestling-domain keyword bag.
package sentiment

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywords []byte

// Neutral is the score of a text without any sentiment keyword.
const Neutral = 0.5

// Config holds the keyword lists.
type Config struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// DefaultConfig returns the embedded keyword lists.
func DefaultConfig() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultKeywords, &cfg); err != nil {
		panic(fmt.Sprintf("sentiment: embedded keywords are invalid: %v", err))
	}
	return cfg
}

// Result is the outcome of scoring a single text.
type Result struct {
	Score    float64 `json:"score"`
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
}

// Analyzer counts keyword presence with one Aho-Corasick pass per text.
// Automaton hits are confirmed as whole words before they count.
type Analyzer struct {
	keywords  []string
	positive  []bool
	words     []*regexp.Regexp
	automaton *ahocorasick.Matcher
}

// NewAnalyzer builds an Analyzer. A keyword listed on both sides counts as
// positive.
func NewAnalyzer(cfg Config) *Analyzer {
	a := &Analyzer{}
	seen := make(map[string]struct{})
	add := func(words []string, positive bool) {
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			a.keywords = append(a.keywords, w)
			a.positive = append(a.positive, positive)
			a.words = append(a.words, regexp.MustCompile(wholeWord(w)))
		}
	}
	add(cfg.Positive, true)
	add(cfg.Negative, false)

	if len(a.keywords) > 0 {
		a.automaton = ahocorasick.NewStringMatcher(a.keywords)
	}
	return a
}

// Analyze scores text in [0,1]: positive hits over all hits, Neutral when
// nothing matched.
func (a *Analyzer) Analyze(text string) Result {
	r := Result{Score: Neutral}
	if a.automaton == nil || text == "" {
		return r
	}

	lower := strings.ToLower(text)
	for _, idx := range a.automaton.MatchThreadSafe([]byte(lower)) {
		if !a.words[idx].MatchString(lower) {
			continue
		}
		if a.positive[idx] {
			r.Positive++
		} else {
			r.Negative++
		}
	}

	if total := r.Positive + r.Negative; total > 0 {
		r.Score = float64(r.Positive) / float64(total)
	}
	return r
}

// wholeWord anchors keyword on word boundaries where it starts or ends with
// an ASCII word character.
func wholeWord(keyword string) string {
	parts := strings.Fields(keyword)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	expr := strings.Join(parts, `\s+`)
	if isWordByte(keyword[0]) {
		expr = `\b` + expr
	}
	if isWordByte(keyword[len(keyword)-1]) {
		expr += `\b`
	}
	return expr
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
