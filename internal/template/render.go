// Package template implements the logic-less template language used for
// notification rendering: variable substitution with dotted paths, truthy
// conditionals and sequence iteration. Missing keys render as empty strings.
package template

import (
	"fmt"
	"strconv"
	"strings"

	"notify-dispatch/internal/common/errors"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Template is a parsed template ready for rendering.
type Template struct {
	nodes []node
}

type node interface {
	render(sb *strings.Builder, scopes []interface{})
}

type textNode string

type varNode struct {
	path string
}

type sectionNode struct {
	each     bool
	path     string
	children []node
}

// Parse parses template text into a renderable Template. The returned error
// carries a human-readable diagnostic for malformed input.
func Parse(text string) (*Template, error) {
	p := &parser{input: text}
	nodes, err := p.parse("")
	if err != nil {
		return nil, err
	}
	return &Template{nodes: nodes}, nil
}

// Validate attempts to parse the given template text in isolation and reports
// a TEMPLATE_SYNTAX_ERROR for structurally malformed input. Side-effect-free.
func Validate(text string) error {
	if _, err := Parse(text); err != nil {
		return errors.NewTemplateSyntaxError(err.Error())
	}
	return nil
}

// Render substitutes the context into the template. Unresolved placeholders
// render as empty strings.
func (t *Template) Render(context map[string]interface{}) string {
	var sb strings.Builder
	scopes := []interface{}{context}
	for _, n := range t.nodes {
		n.render(&sb, scopes)
	}
	return sb.String()
}

// Render is a convenience that parses and renders in one step.
func Render(text string, context map[string]interface{}) (string, error) {
	t, err := Parse(text)
	if err != nil {
		return "", errors.NewTemplateSyntaxError(err.Error())
	}
	return t.Render(context), nil
}

// Render resolves a template pair by id and renders both halves against the
// context.
func (s *Store) Render(id string, context map[string]interface{}) (subject, body string, err error) {
	pair, err := s.Get(id)
	if err != nil {
		return "", "", err
	}
	subject, err = Render(pair.Subject, context)
	if err != nil {
		return "", "", err
	}
	body, err = Render(pair.Body, context)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

// ==========================
// Parser
// ==========================

type parser struct {
	input string
	pos   int
}

// parse consumes nodes until the closing tag for the given section kind
// ("if", "each") or end of input when kind is empty.
func (p *parser) parse(kind string) ([]node, error) {
	var nodes []node

	for p.pos < len(p.input) {
		start := strings.Index(p.input[p.pos:], openDelim)
		if start == -1 {
			nodes = append(nodes, textNode(p.input[p.pos:]))
			p.pos = len(p.input)
			break
		}

		if start > 0 {
			nodes = append(nodes, textNode(p.input[p.pos:p.pos+start]))
			p.pos += start
		}

		tagStart := p.pos
		end := strings.Index(p.input[p.pos+len(openDelim):], closeDelim)
		if end == -1 {
			return nil, fmt.Errorf("unterminated placeholder starting at offset %d", tagStart)
		}

		tag := strings.TrimSpace(p.input[p.pos+len(openDelim) : p.pos+len(openDelim)+end])
		p.pos += len(openDelim) + end + len(closeDelim)

		switch {
		case tag == "":
			return nil, fmt.Errorf("empty placeholder at offset %d", tagStart)

		case strings.HasPrefix(tag, "#if"):
			arg := strings.TrimSpace(strings.TrimPrefix(tag, "#if"))
			if arg == "" {
				return nil, fmt.Errorf("#if section at offset %d is missing an argument", tagStart)
			}
			children, err := p.parse("if")
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, &sectionNode{path: arg, children: children})

		case strings.HasPrefix(tag, "#each"):
			arg := strings.TrimSpace(strings.TrimPrefix(tag, "#each"))
			if arg == "" {
				return nil, fmt.Errorf("#each section at offset %d is missing an argument", tagStart)
			}
			children, err := p.parse("each")
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, &sectionNode{each: true, path: arg, children: children})

		case tag == "/if" || tag == "/each":
			closing := strings.TrimPrefix(tag, "/")
			if kind == "" {
				return nil, fmt.Errorf("{{%s}} at offset %d without a matching opening section", tag, tagStart)
			}
			if closing != kind {
				return nil, fmt.Errorf("{{%s}} at offset %d closes a #%s section", tag, tagStart, kind)
			}
			return nodes, nil

		case strings.HasPrefix(tag, "#"):
			return nil, fmt.Errorf("unknown section %q at offset %d", tag, tagStart)

		default:
			nodes = append(nodes, &varNode{path: tag})
		}
	}

	if kind != "" {
		return nil, fmt.Errorf("unclosed #%s section at end of template", kind)
	}
	return nodes, nil
}

// ==========================
// Rendering
// ==========================

func (t textNode) render(sb *strings.Builder, _ []interface{}) {
	sb.WriteString(string(t))
}

func (v *varNode) render(sb *strings.Builder, scopes []interface{}) {
	sb.WriteString(formatValue(lookup(scopes, v.path)))
}

func (s *sectionNode) render(sb *strings.Builder, scopes []interface{}) {
	value := lookup(scopes, s.path)

	if s.each {
		items, ok := value.([]interface{})
		if !ok {
			return
		}
		for _, item := range items {
			inner := append(scopes, item)
			for _, child := range s.children {
				child.render(sb, inner)
			}
		}
		return
	}

	if truthy(value) {
		for _, child := range s.children {
			child.render(sb, scopes)
		}
	}
}

// lookup resolves a dotted path against the scope stack, innermost first.
func lookup(scopes []interface{}, path string) interface{} {
	if path == "this" {
		return scopes[len(scopes)-1]
	}

	parts := strings.Split(path, ".")
	for i := len(scopes) - 1; i >= 0; i-- {
		if value, ok := dig(scopes[i], parts); ok {
			return value
		}
	}
	return nil
}

func dig(value interface{}, parts []string) (interface{}, bool) {
	current := value
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// formatValue converts a context value to its rendered text. The accepted
// value kinds are the closed set produced by JSON decoding: string, bool,
// numbers, lists and maps.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}
