// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package tagging infers tags, issue category, severity and the affected
// product from free-form content using keyword tables. The tables are
// plain data so collectors can ship their own YAML rule packs.
package tagging

import (
	"sort"
	"strings"
)

// Tagger applies a ruleset to content
type Tagger struct {
	rules *Ruleset
}

// NewTagger creates a tagger from a ruleset, defaulting when nil
func NewTagger(rules *Ruleset) *Tagger {
	if rules == nil {
		rules = DefaultRuleset()
	}
	return &Tagger{rules: rules}
}

// Tags infers the tag set for content. Product mentions become
// "product:<name>" tags and category matches become "category:<name>" tags.
// The result is deduplicated and sorted for stable storage.
func (t *Tagger) Tags(content string) []string {
	lower := strings.ToLower(content)
	seen := make(map[string]bool)

	for _, product := range t.rules.Products {
		if strings.Contains(lower, strings.ToLower(product)) {
			seen["product:"+product] = true
		}
	}

	for _, rule := range t.rules.Categories {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				seen["category:"+rule.Name] = true
				break
			}
		}
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Category infers the issue category, returning DefaultCategory when no
// rule matches. Rules are checked in pack order so earlier rules win.
func (t *Tagger) Category(content string) string {
	lower := strings.ToLower(content)
	for _, rule := range t.rules.Categories {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Name
			}
		}
	}
	return DefaultCategory
}

// Severity infers the severity level, returning DefaultSeverity when no
// rule matches.
func (t *Tagger) Severity(content string) string {
	lower := strings.ToLower(content)
	for _, rule := range t.rules.Severities {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Level
			}
		}
	}
	return DefaultSeverity
}

// Platform infers the affected product, or "" when none is mentioned
func (t *Tagger) Platform(content string) string {
	lower := strings.ToLower(content)
	for _, product := range t.rules.Products {
		if strings.Contains(lower, strings.ToLower(product)) {
			return product
		}
	}
	return ""
}

// Normalize produces the normalized form of content used for storage
func Normalize(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}
