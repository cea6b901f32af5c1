package library

import (
	"errors"
	"slices"
	"strings"
)

// Entity type names used in routes, events and the item root table.
const (
	EntityTerm     = "term"
	EntityTemplate = "template"
)

// Term is a controlled terminology entry.
type Term struct {
	Name       string   `json:"name"`
	Definition string   `json:"definition,omitempty"`
	Synonyms   []string `json:"synonyms,omitempty"`
}

func (t Term) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("term name is required")
	}
	return nil
}

// Equal ignores surrounding whitespace and synonym order.
func (t Term) Equal(o Term) bool {
	if strings.TrimSpace(t.Name) != strings.TrimSpace(o.Name) ||
		strings.TrimSpace(t.Definition) != strings.TrimSpace(o.Definition) {
		return false
	}
	return slices.Equal(normalizedSet(t.Synonyms), normalizedSet(o.Synonyms))
}

// Template is a syntax template with bracketed parameter placeholders, e.g.
// "Percentage of [Activity] completed by [Timepoint]".
type Template struct {
	Name         string `json:"name"`
	GuidanceText string `json:"guidance_text,omitempty"`
}

func (t Template) Validate() error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return errors.New("template name is required")
	}
	depth := 0
	for _, r := range name {
		switch r {
		case '[':
			depth++
			if depth > 1 {
				return errors.New("template parameters cannot be nested")
			}
		case ']':
			depth--
			if depth < 0 {
				return errors.New("template has an unmatched ']'")
			}
		}
	}
	if depth != 0 {
		return errors.New("template has an unclosed '['")
	}
	return nil
}

func (t Template) Equal(o Template) bool {
	return strings.TrimSpace(t.Name) == strings.TrimSpace(o.Name) &&
		strings.TrimSpace(t.GuidanceText) == strings.TrimSpace(o.GuidanceText)
}

// Parameters returns the placeholder names in order of appearance.
func (t Template) Parameters() []string {
	var out []string
	rest := t.Name
	for {
		open := strings.IndexByte(rest, '[')
		if open < 0 {
			return out
		}
		end := strings.IndexByte(rest[open:], ']')
		if end < 0 {
			return out
		}
		out = append(out, strings.TrimSpace(rest[open+1:open+end]))
		rest = rest[open+end+1:]
	}
}

func normalizedSet(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
