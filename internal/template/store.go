package template

import (
	"notify-dispatch/internal/common/errors"
)

// Pair is an immutable subject/body template pair keyed by template id.
type Pair struct {
	Subject string
	Body    string
}

// Store holds the template registry. The built-in set is fixed at process
// start; lookup by unknown id is a defined error, not a crash.
type Store struct {
	templates map[string]Pair
}

// Built-in template identifiers.
const (
	TemplateIssueCreated      = "issue_created"
	TemplateIssueAssigned     = "issue_assigned"
	TemplateIssueTransitioned = "issue_transitioned"
	TemplateSLABreach         = "sla_breach"
)

// NewStore creates a Store populated with the built-in template set.
func NewStore() *Store {
	return &Store{
		templates: map[string]Pair{
			TemplateIssueCreated: {
				Subject: "New issue: {{issue.title}}",
				Body: "A new issue was created.\n\n" +
					"Title: {{issue.title}}\n" +
					"Description: {{issue.description}}\n" +
					"Priority: {{issue.priority}}\n" +
					"Status: {{issue.status}}\n" +
					"{{#if issue.url}}View it at {{issue.url}}\n{{/if}}",
			},
			TemplateIssueAssigned: {
				Subject: "Issue assigned to you: {{issue.title}}",
				Body: "An issue has been assigned to you.\n\n" +
					"Title: {{issue.title}}\n" +
					"Priority: {{issue.priority}}\n" +
					"{{#if assigner}}Assigned by: {{assigner}}\n{{/if}}" +
					"{{#if issue.url}}View it at {{issue.url}}\n{{/if}}",
			},
			TemplateIssueTransitioned: {
				Subject: "Issue updated: {{issue.title}} is now {{issue.status}}",
				Body: "The status of an issue you follow has changed.\n\n" +
					"Title: {{issue.title}}\n" +
					"{{#if previousStatus}}Previous status: {{previousStatus}}\n{{/if}}" +
					"New status: {{issue.status}}\n" +
					"{{#if issue.url}}View it at {{issue.url}}\n{{/if}}",
			},
			TemplateSLABreach: {
				Subject: "SLA breach: {{issue.title}}",
				Body: "An SLA target has been breached.\n\n" +
					"Title: {{issue.title}}\n" +
					"Priority: {{issue.priority}}\n" +
					"{{#if breaches}}Breached targets:\n{{#each breaches}}- {{this}}\n{{/each}}{{/if}}" +
					"Immediate attention is required.\n",
			},
		},
	}
}

// Get looks up a template pair by id. The match is case-sensitive.
func (s *Store) Get(id string) (Pair, error) {
	pair, ok := s.templates[id]
	if !ok {
		return Pair{}, errors.NewTemplateNotFoundError(id)
	}
	return pair, nil
}

// IDs returns the registered template identifiers.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	return ids
}
