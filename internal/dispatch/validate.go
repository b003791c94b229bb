package dispatch

import (
	"regexp"
	"strings"

	"notify-dispatch/internal/common/errors"
)

// addressPattern accepts local@domain.tld shapes: no whitespace, a single @,
// and at least one dot in the domain.
var addressPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateRequest checks a request for structural completeness and address
// syntax. Pure function, no side effects.
func ValidateRequest(req *Request) error {
	if strings.TrimSpace(req.To) == "" {
		return errors.NewMissingRecipientError()
	}
	if !addressPattern.MatchString(req.To) {
		return errors.NewInvalidAddressError(req.To)
	}
	if req.Template == "" && req.Subject == "" {
		return errors.NewMissingContentError("no template and no subject")
	}
	if req.Template == "" && req.Body == "" {
		return errors.NewMissingContentError("no template and no body")
	}
	return nil
}
