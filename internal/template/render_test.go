// internal/template/render_test.go
package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-dispatch/internal/common/errors"
)

// ==========================
// Test Helper Functions
// ==========================

func createIssueContext() map[string]interface{} {
	return map[string]interface{}{
		"issue": map[string]interface{}{
			"title":       "Bug in login",
			"description": "Login fails for SSO users",
			"priority":    "high",
			"status":      "open",
		},
	}
}

// ==========================
// Rendering Tests
// ==========================

func TestRender_VariableSubstitution(t *testing.T) {
	tests := []struct {
		name     string
		template string
		context  map[string]interface{}
		expected string
	}{
		{
			name:     "simple variable",
			template: "Hello {{name}}",
			context:  map[string]interface{}{"name": "Ada"},
			expected: "Hello Ada",
		},
		{
			name:     "dotted path",
			template: "New issue: {{issue.title}}",
			context:  createIssueContext(),
			expected: "New issue: Bug in login",
		},
		{
			name:     "missing key renders empty",
			template: "Hello {{nobody}}!",
			context:  map[string]interface{}{},
			expected: "Hello !",
		},
		{
			name:     "missing intermediate path renders empty",
			template: "{{issue.reporter.name}}",
			context:  createIssueContext(),
			expected: "",
		},
		{
			name:     "whitespace inside delimiters is ignored",
			template: "Hello {{ name }}",
			context:  map[string]interface{}{"name": "Ada"},
			expected: "Hello Ada",
		},
		{
			name:     "integral float renders without decimal point",
			template: "{{count}} items",
			context:  map[string]interface{}{"count": float64(3)},
			expected: "3 items",
		},
		{
			name:     "fractional float keeps its digits",
			template: "{{score}}",
			context:  map[string]interface{}{"score": 0.75},
			expected: "0.75",
		},
		{
			name:     "boolean renders as text",
			template: "{{flag}}",
			context:  map[string]interface{}{"flag": true},
			expected: "true",
		},
		{
			name:     "nil context value renders empty",
			template: "[{{gone}}]",
			context:  map[string]interface{}{"gone": nil},
			expected: "[]",
		},
		{
			name:     "no placeholders passes through",
			template: "plain text only",
			context:  nil,
			expected: "plain text only",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(tt.template, tt.context)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestRender_Conditionals(t *testing.T) {
	tests := []struct {
		name     string
		template string
		context  map[string]interface{}
		expected string
	}{
		{
			name:     "truthy string includes section",
			template: "{{#if url}}See {{url}}{{/if}}",
			context:  map[string]interface{}{"url": "http://x.test"},
			expected: "See http://x.test",
		},
		{
			name:     "missing key skips section",
			template: "a{{#if url}}X{{/if}}b",
			context:  map[string]interface{}{},
			expected: "ab",
		},
		{
			name:     "empty string is falsy",
			template: "{{#if note}}note: {{note}}{{/if}}",
			context:  map[string]interface{}{"note": ""},
			expected: "",
		},
		{
			name:     "false boolean skips section",
			template: "{{#if ok}}yes{{/if}}",
			context:  map[string]interface{}{"ok": false},
			expected: "",
		},
		{
			name:     "zero is falsy",
			template: "{{#if n}}some{{/if}}",
			context:  map[string]interface{}{"n": float64(0)},
			expected: "",
		},
		{
			name:     "empty list is falsy",
			template: "{{#if xs}}has items{{/if}}",
			context:  map[string]interface{}{"xs": []interface{}{}},
			expected: "",
		},
		{
			name:     "nested conditionals",
			template: "{{#if a}}A{{#if b}}B{{/if}}{{/if}}",
			context:  map[string]interface{}{"a": true, "b": true},
			expected: "AB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(tt.template, tt.context)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestRender_Iteration(t *testing.T) {
	tests := []struct {
		name     string
		template string
		context  map[string]interface{}
		expected string
	}{
		{
			name:     "each over scalar list with this",
			template: "{{#each names}}- {{this}}\n{{/each}}",
			context:  map[string]interface{}{"names": []interface{}{"a", "b"}},
			expected: "- a\n- b\n",
		},
		{
			name:     "each over object list resolves item fields first",
			template: "{{#each issues}}{{title}};{{/each}}",
			context: map[string]interface{}{
				"title": "outer",
				"issues": []interface{}{
					map[string]interface{}{"title": "one"},
					map[string]interface{}{"title": "two"},
				},
			},
			expected: "one;two;",
		},
		{
			name:     "item scope falls through to outer scope",
			template: "{{#each issues}}{{prefix}}{{title}};{{/each}}",
			context: map[string]interface{}{
				"prefix": "#",
				"issues": []interface{}{
					map[string]interface{}{"title": "one"},
				},
			},
			expected: "#one;",
		},
		{
			name:     "each over missing key renders nothing",
			template: "x{{#each gone}}Y{{/each}}z",
			context:  map[string]interface{}{},
			expected: "xz",
		},
		{
			name:     "each over non-list renders nothing",
			template: "{{#each scalar}}Y{{/each}}",
			context:  map[string]interface{}{"scalar": "not a list"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(tt.template, tt.context)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

// ==========================
// Parse Error Tests
// ==========================

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		contains string
	}{
		{
			name:     "unterminated placeholder",
			template: "Hello {{name",
			contains: "unterminated placeholder",
		},
		{
			name:     "empty placeholder",
			template: "Hello {{}}",
			contains: "empty placeholder",
		},
		{
			name:     "unclosed if section",
			template: "{{#if a}}never closed",
			contains: "unclosed #if section",
		},
		{
			name:     "unclosed each section",
			template: "{{#each xs}}item",
			contains: "unclosed #each section",
		},
		{
			name:     "stray closing tag",
			template: "text {{/if}}",
			contains: "without a matching opening section",
		},
		{
			name:     "mismatched closing tag",
			template: "{{#if a}}{{/each}}",
			contains: "closes a #if section",
		},
		{
			name:     "if without argument",
			template: "{{#if}}x{{/if}}",
			contains: "missing an argument",
		},
		{
			name:     "each without argument",
			template: "{{#each}}x{{/each}}",
			contains: "missing an argument",
		},
		{
			name:     "unknown section",
			template: "{{#unless a}}x{{/unless}}",
			contains: "unknown section",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.template)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidate(t *testing.T) {
	err := Validate("Hello {{name}}, {{#if urgent}}act now{{/if}}")
	assert.NoError(t, err)

	err = Validate("{{#if a}}never closed")
	require.Error(t, err)
	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeTemplateSyntaxError, stdErr.Code)
	assert.Contains(t, stdErr.Details, "unclosed #if section")
}

// ==========================
// Store Tests
// ==========================

func TestStore_Get(t *testing.T) {
	store := NewStore()

	pair, err := store.Get(TemplateIssueCreated)
	require.NoError(t, err)
	assert.Equal(t, "New issue: {{issue.title}}", pair.Subject)

	_, err = store.Get("no_such_template")
	require.Error(t, err)
	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeTemplateNotFound, stdErr.Code)

	// Lookup is case-sensitive.
	_, err = store.Get("Issue_Created")
	assert.Error(t, err)
}

func TestStore_Render_IssueCreated(t *testing.T) {
	store := NewStore()

	subject, body, err := store.Render(TemplateIssueCreated, createIssueContext())
	require.NoError(t, err)

	assert.Equal(t, "New issue: Bug in login", subject)
	assert.Contains(t, body, "Title: Bug in login")
	assert.Contains(t, body, "Description: Login fails for SSO users")
	assert.Contains(t, body, "Priority: high")
	assert.Contains(t, body, "Status: open")
	assert.NotContains(t, body, "View it at", "url section should be omitted without a url")
}

func TestStore_Render_ConditionalURL(t *testing.T) {
	store := NewStore()
	ctx := createIssueContext()
	ctx["issue"].(map[string]interface{})["url"] = "https://tracker.test/1"

	_, body, err := store.Render(TemplateIssueCreated, ctx)
	require.NoError(t, err)
	assert.Contains(t, body, "View it at https://tracker.test/1")
}

func TestStore_Render_SLABreach(t *testing.T) {
	store := NewStore()
	ctx := createIssueContext()
	ctx["breaches"] = []interface{}{"response time", "resolution time"}

	subject, body, err := store.Render(TemplateSLABreach, ctx)
	require.NoError(t, err)

	assert.Equal(t, "SLA breach: Bug in login", subject)
	assert.Contains(t, body, "- response time")
	assert.Contains(t, body, "- resolution time")
}

func TestStore_IDs(t *testing.T) {
	store := NewStore()
	ids := store.IDs()

	assert.Len(t, ids, 4)
	assert.Contains(t, ids, TemplateIssueCreated)
	assert.Contains(t, ids, TemplateIssueAssigned)
	assert.Contains(t, ids, TemplateIssueTransitioned)
	assert.Contains(t, ids, TemplateSLABreach)
}
