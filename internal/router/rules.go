package router

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/voidspan/concierge/internal/registry"
	"github.com/voidspan/concierge/internal/session"
	"go.uber.org/zap"
)

// RuleConfig holds the tunable scoring weights for the rule strategy.
// The defaults are heuristic; treat them as a starting point, not gospel.
type RuleConfig struct {
	// Threshold a tool's normalized score must strictly exceed to win.
	Threshold float64 `json:"threshold"`
	// PhraseWeight is multiplied by the word count of a matched trigger
	// phrase, so multi-word phrases dominate single keywords.
	PhraseWeight float64 `json:"phrase_weight"`
	// KeywordWeight is the contribution of a matched standalone keyword.
	KeywordWeight float64 `json:"keyword_weight"`
	// VerbBonus applies when the query's leading imperative verb is one
	// the tool is known for.
	VerbBonus float64 `json:"verb_bonus"`
	// PatternWeight is the contribution of a matched shape pattern
	// (e.g. an arithmetic expression).
	PatternWeight float64 `json:"pattern_weight"`
	// Saturation controls normalization: score = raw / (raw + Saturation).
	Saturation float64 `json:"saturation"`
}

// DefaultRuleConfig returns the default weighting scheme.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		Threshold:     0.5,
		PhraseWeight:  1.0,
		KeywordWeight: 1.0,
		VerbBonus:     0.5,
		PatternWeight: 2.0,
		Saturation:    1.5,
	}
}

// RuleStrategy scores queries against trigger phrases, keywords,
// imperative verbs, and shape patterns declared in the registry.
type RuleStrategy struct {
	reg      *registry.Registry
	cfg      RuleConfig
	patterns map[string][]*regexp.Regexp // tool name -> compiled patterns
	logger   *zap.Logger
}

// NewRuleStrategy compiles the registry's shape patterns and returns a
// ready strategy. Invalid patterns are skipped with a warning. Unset
// weights fall back to defaults field by field; the threshold is taken
// as given, so zero means any positive score wins.
func NewRuleStrategy(reg *registry.Registry, cfg RuleConfig, logger *zap.Logger) *RuleStrategy {
	def := DefaultRuleConfig()
	if cfg.PhraseWeight <= 0 {
		cfg.PhraseWeight = def.PhraseWeight
	}
	if cfg.KeywordWeight <= 0 {
		cfg.KeywordWeight = def.KeywordWeight
	}
	if cfg.VerbBonus <= 0 {
		cfg.VerbBonus = def.VerbBonus
	}
	if cfg.PatternWeight <= 0 {
		cfg.PatternWeight = def.PatternWeight
	}
	if cfg.Saturation <= 0 {
		cfg.Saturation = def.Saturation
	}
	patterns := make(map[string][]*regexp.Regexp)
	for _, tool := range reg.List() {
		for _, p := range tool.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				logger.Warn("invalid tool pattern",
					zap.String("tool", tool.Name), zap.String("pattern", p), zap.Error(err))
				continue
			}
			patterns[tool.Name] = append(patterns[tool.Name], re)
		}
	}
	return &RuleStrategy{reg: reg, cfg: cfg, patterns: patterns, logger: logger}
}

// Route scores every registered tool and selects the strict maximum if it
// exceeds the threshold; otherwise general_chat. History is not consulted
// by the rule strategy.
func (s *RuleStrategy) Route(ctx context.Context, query string, history []session.Turn) *Decision {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return noMatch(nil)
	}
	words := tokenize(q)

	tools := s.reg.List()
	candidates := make([]Candidate, 0, len(tools))
	reasons := make(map[string]string, len(tools))

	for _, tool := range tools {
		raw, reason := s.scoreTool(tool, q, words)
		score := 0.0
		if raw > 0 {
			score = raw / (raw + s.cfg.Saturation)
		}
		candidates = append(candidates, Candidate{Tool: tool.Name, Score: score})
		reasons[tool.Name] = reason
	}

	ranked := rankCandidates(candidates)
	if len(ranked) == 0 {
		return noMatch(nil)
	}

	best := ranked[0]
	if best.Score <= s.cfg.Threshold {
		return noMatch(ranked)
	}

	reasoning := reasons[best.Tool]
	if len(ranked) > 1 && ranked[1].Score == best.Score {
		reasoning += fmt.Sprintf("; tied with %s, earliest-declared tool wins", ranked[1].Tool)
	}

	return &Decision{
		Tool:       best.Tool,
		Confidence: best.Score,
		Reasoning:  reasoning,
		Candidates: ranked,
	}
}

// scoreTool computes a tool's raw (unnormalized) score and a human
// reasoning string naming the strongest signal.
func (s *RuleStrategy) scoreTool(tool registry.Descriptor, q string, words []string) (float64, string) {
	var raw float64
	var signals []string

	for _, phrase := range tool.Triggers {
		if strings.Contains(q, phrase) {
			n := len(strings.Fields(phrase))
			raw += s.cfg.PhraseWeight * float64(n)
			signals = append(signals, fmt.Sprintf("trigger phrase %q", phrase))
		}
	}

	for _, kw := range tool.Keywords {
		if containsWord(words, kw) {
			raw += s.cfg.KeywordWeight
			signals = append(signals, fmt.Sprintf("keyword %q", kw))
		}
	}

	if len(words) > 0 {
		for _, verb := range tool.Verbs {
			if words[0] == verb {
				raw += s.cfg.VerbBonus
				signals = append(signals, fmt.Sprintf("imperative verb %q", verb))
				break
			}
		}
	}

	for _, re := range s.patterns[tool.Name] {
		if re.MatchString(q) {
			raw += s.cfg.PatternWeight
			signals = append(signals, "query shape pattern")
			break
		}
	}

	if raw == 0 {
		return 0, "no signals"
	}
	return raw, "matched " + strings.Join(signals, ", ")
}

// rankCandidates sorts descending by score; equal scores keep registry
// declaration order (the input is already in declaration order, and the
// sort is stable).
func rankCandidates(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// tokenize splits a lower-cased query into words, stripping punctuation.
func tokenize(q string) []string {
	return strings.FieldsFunc(q, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
}

// containsWord reports whether the keyword appears as a standalone word,
// tolerating a trailing plural "s" in either direction.
func containsWord(words []string, kw string) bool {
	for _, w := range words {
		if w == kw || w == kw+"s" || w+"s" == kw {
			return true
		}
	}
	return false
}
