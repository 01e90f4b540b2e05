package fo

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fo-go/internal/model"
)

// FileAttributes is everything the resolver may look at. Now is the
// resolution date for template expansion; it is passed in rather than read
// from the clock so resolution stays referentially transparent.
type FileAttributes struct {
	Name      string // Base name including extension
	Extension string // Lowercased, without the dot
	Now       time.Time
}

// Destination is a successful resolution: the expanded destination folder and
// the rule that produced it.
type Destination struct {
	Folder string
	Rule   *model.Rule
}

// ResolveDestination evaluates rules in ascending priority order and expands
// the first matching rule's destination template. It performs no I/O and
// reads no hidden state: the same attributes and the same rule snapshot
// always produce the same destination.
//
// Returns ok=false when no rule matches; the caller decides the fallback.
func ResolveDestination(attrs FileAttributes, rules []*model.Rule) (Destination, bool) {
	ordered := make([]*model.Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	for _, r := range ordered {
		if ruleMatches(r, attrs) {
			return Destination{
				Folder: ExpandTemplate(r.Destination, attrs),
				Rule:   r,
			}, true
		}
	}
	return Destination{}, false
}

// ruleMatches reports whether a rule's pattern matches the file. Patterns
// containing glob metacharacters match against the base name; anything else
// is treated as a comma-separated extension list.
func ruleMatches(r *model.Rule, attrs FileAttributes) bool {
	pattern := strings.TrimSpace(r.Pattern)
	if pattern == "" {
		return false
	}

	if strings.ContainsAny(pattern, "*?[") {
		matched, err := filepath.Match(pattern, attrs.Name)
		if err != nil {
			// Malformed patterns never match.
			return false
		}
		return matched
	}

	for _, ext := range strings.Split(pattern, ",") {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext != "" && strings.EqualFold(ext, attrs.Extension) {
			return true
		}
	}
	return false
}

// ExpandTemplate substitutes file attributes into a destination template.
// Supported placeholders: {category} {ext} {name} {year} {month} {day}.
func ExpandTemplate(template string, attrs FileAttributes) string {
	stem := strings.TrimSuffix(attrs.Name, filepath.Ext(attrs.Name))
	repl := strings.NewReplacer(
		"{category}", CategoryForExtension(attrs.Extension),
		"{ext}", attrs.Extension,
		"{name}", stem,
		"{year}", fmt.Sprintf("%04d", attrs.Now.Year()),
		"{month}", fmt.Sprintf("%02d", int(attrs.Now.Month())),
		"{day}", fmt.Sprintf("%02d", attrs.Now.Day()),
	)
	return repl.Replace(template)
}

// FallbackRule synthesizes the lowest-priority catch-all rule implementing
// the category-by-extension default bucket. Keeping the fallback as an
// ordinary rule means resolution has no special-cased branch.
func FallbackRule(template string) *model.Rule {
	if template == "" {
		template = "{category}"
	}
	return &model.Rule{
		ID:          "fallback",
		Name:        "fallback",
		Pattern:     "*",
		Destination: template,
		Priority:    int(^uint(0) >> 1), // Max int: always evaluated last
	}
}
