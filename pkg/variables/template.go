// Package variables parses and resolves {{steps.<id>.result.<path>}} and {{item.<path>}} references.
package variables

import (
	"regexp"
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"

	stepsRoot  = "steps"
	resultKey  = "result"
	loopItemID = "item"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Part is one piece of a parsed template.
type Part interface {
	isPart()
}

// Literal is plain text.
type Literal struct {
	Text string
}

// StepResultRef addresses a prior step's result. Path excludes the leading "result".
type StepResultRef struct {
	StepID string
	Path   []string
}

// LoopItemRef addresses the current forEach item.
type LoopItemRef struct {
	Path []string
}

func (Literal) isPart()       {}
func (StepResultRef) isPart() {}
func (LoopItemRef) isPart()   {}

// String renders the reference in its canonical form.
func (r StepResultRef) String() string {
	segments := append([]string{stepsRoot, r.StepID, resultKey}, r.Path...)
	return openDelim + strings.Join(segments, ".") + closeDelim
}

func (r LoopItemRef) String() string {
	segments := append([]string{loopItemID}, r.Path...)
	return openDelim + strings.Join(segments, ".") + closeDelim
}

// Template is a parsed string.
type Template struct {
	Raw   string
	Parts []Part
}

// IsLiteral reports whether the template holds no references.
func (t Template) IsLiteral() bool {
	for _, part := range t.Parts {
		if _, ok := part.(Literal); !ok {
			return false
		}
	}

	return true
}

// Single returns the reference when the whole string is exactly one reference.
func (t Template) Single() (Part, bool) {
	if len(t.Parts) != 1 {
		return nil, false
	}

	if _, ok := t.Parts[0].(Literal); ok {
		return nil, false
	}

	return t.Parts[0], true
}

// References returns the non-literal parts in order.
func (t Template) References() []Part {
	refs := make([]Part, 0)

	for _, part := range t.Parts {
		if _, ok := part.(Literal); !ok {
			refs = append(refs, part)
		}
	}

	return refs
}

// Parse splits a string into literals and references. Whitespace inside the
// braces is ignored; a {{...}} that is not a valid reference stays literal.
func Parse(raw string) Template {
	template := Template{Raw: raw, Parts: make([]Part, 0)}
	rest := raw

	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			template.Parts = append(template.Parts, Literal{Text: literal.String()})
			literal.Reset()
		}
	}

	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			literal.WriteString(rest)
			break
		}

		end := strings.Index(rest[start+len(openDelim):], closeDelim)
		if end < 0 {
			literal.WriteString(rest)
			break
		}

		end += start + len(openDelim)
		token := rest[start : end+len(closeDelim)]
		inner := strings.TrimSpace(rest[start+len(openDelim) : end])

		literal.WriteString(rest[:start])

		if part, ok := parseReference(inner); ok {
			flush()
			template.Parts = append(template.Parts, part)
		} else {
			literal.WriteString(token)
		}

		rest = rest[end+len(closeDelim):]
	}

	flush()

	return template
}

func parseReference(inner string) (Part, bool) {
	segments := strings.Split(inner, ".")
	for _, segment := range segments {
		if !segmentPattern.MatchString(segment) {
			return nil, false
		}
	}

	switch {
	case segments[0] == loopItemID:
		return LoopItemRef{Path: segments[1:]}, true
	case segments[0] == stepsRoot && len(segments) >= 3 && segments[2] == resultKey:
		return StepResultRef{StepID: segments[1], Path: segments[3:]}, true
	default:
		return nil, false
	}
}

// IsReference reports whether s contains at least one reference.
func IsReference(s string) bool {
	return !Parse(s).IsLiteral()
}
