// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tagging

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CategoryRule maps an issue category to the keywords that signal it.
// Rules are evaluated in order; the first match wins for category inference.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// SeverityRule maps a severity level to the keywords that signal it.
// Rules are evaluated in order; the first match wins.
type SeverityRule struct {
	Level    string   `yaml:"level"`
	Keywords []string `yaml:"keywords"`
}

// Ruleset is the full keyword taxonomy used for inference. A ruleset can be
// loaded from a YAML rule pack or taken from the built-in defaults.
type Ruleset struct {
	Products   []string       `yaml:"products"`
	Categories []CategoryRule `yaml:"categories"`
	Severities []SeverityRule `yaml:"severities"`
}

// DefaultCategory is assigned when no category rule matches
const DefaultCategory = "other"

// DefaultSeverity is assigned when no severity rule matches
const DefaultSeverity = "minor"

// DefaultRuleset returns the built-in keyword taxonomy
func DefaultRuleset() *Ruleset {
	return &Ruleset{
		Products: []string{
			"ChatGPT",
			"Claude",
			"Gemini",
			"DeepSeek",
			"Cursor",
			"Windsurf",
			"Copilot",
			"Perplexity",
			"Midjourney",
			"DALL-E",
			"Stable Diffusion",
			"LangChain",
			"LlamaIndex",
			"OpenAI API",
			"Anthropic API",
		},
		Categories: []CategoryRule{
			{Name: "performance", Keywords: []string{"slow", "timeout", "lag", "latency", "taking forever"}},
			{Name: "accuracy", Keywords: []string{"wrong", "incorrect", "hallucination", "made up"}},
			{Name: "functionality", Keywords: []string{"missing", "not working", "broken"}},
			{Name: "experience", Keywords: []string{"confusing", "hard to use", "ugly", "clunky"}},
			{Name: "pricing", Keywords: []string{"expensive", "pricing", "cost", "overpriced"}},
			{Name: "api", Keywords: []string{"api error", "rate limit", "quota"}},
			{Name: "stability", Keywords: []string{"crash", "down", "outage", "unstable"}},
		},
		Severities: []SeverityRule{
			{Level: "blocker", Keywords: []string{"can't", "cannot", "impossible", "completely", "totally"}},
			{Level: "major", Keywords: []string{"very", "really", "seriously", "terrible"}},
			{Level: "minor", Keywords: []string{"sometimes", "occasionally", "slightly"}},
		},
	}
}

// LoadRuleset reads a YAML rule pack from disk
func LoadRuleset(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule pack: %w", err)
	}

	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rule pack: %w", err)
	}

	if err := rs.validate(); err != nil {
		return nil, fmt.Errorf("invalid rule pack: %w", err)
	}

	return &rs, nil
}

// validate rejects rule packs with empty names or keyword lists
func (r *Ruleset) validate() error {
	for i, c := range r.Categories {
		if c.Name == "" {
			return fmt.Errorf("categories[%d] has no name", i)
		}
		if len(c.Keywords) == 0 {
			return fmt.Errorf("category %q has no keywords", c.Name)
		}
	}
	for i, s := range r.Severities {
		if s.Level == "" {
			return fmt.Errorf("severities[%d] has no level", i)
		}
		if len(s.Keywords) == 0 {
			return fmt.Errorf("severity %q has no keywords", s.Level)
		}
	}
	return nil
}
