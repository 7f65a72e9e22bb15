package plan

import (
	"fmt"
	"strings"

	"slidecast/internal/services"
)

// Severity ranks a validation problem.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNotice  Severity = "notice"
)

// GlobalPage marks problems that concern the whole plan rather than one page.
const GlobalPage = -1

// Problem is one validation finding.
type Problem struct {
	Page     int      `json:"page"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (p Problem) String() string {
	if p.Page == GlobalPage {
		return fmt.Sprintf("%s: %s", p.Severity, p.Message)
	}
	return fmt.Sprintf("%s: page %d: %s", p.Severity, p.Page+1, p.Message)
}

// Report collects every problem found while building a plan.
type Report struct {
	Problems []Problem `json:"problems,omitempty"`
}

func (r *Report) add(page int, severity Severity, format string, args ...any) {
	r.Problems = append(r.Problems, Problem{Page: page, Severity: severity, Message: fmt.Sprintf(format, args...)})
}

// Errorf records an error.
func (r *Report) Errorf(page int, format string, args ...any) {
	r.add(page, SeverityError, format, args...)
}

// Warnf records a warning.
func (r *Report) Warnf(page int, format string, args ...any) {
	r.add(page, SeverityWarning, format, args...)
}

// Noticef records an informational notice.
func (r *Report) Noticef(page int, format string, args ...any) {
	r.add(page, SeverityNotice, format, args...)
}

// Merge appends other's problems.
func (r *Report) Merge(other Report) {
	r.Problems = append(r.Problems, other.Problems...)
}

// Filter returns the problems of one severity.
func (r Report) Filter(severity Severity) []Problem {
	var out []Problem
	for _, p := range r.Problems {
		if p.Severity == severity {
			out = append(out, p)
		}
	}
	return out
}

// HasErrors reports whether any problem blocks rendering.
func (r Report) HasErrors() bool {
	return len(r.Filter(SeverityError)) > 0
}

// Err returns a validation error listing every blocking problem, or nil.
func (r Report) Err() error {
	errs := r.Filter(SeverityError)
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, 0, len(errs))
	for _, p := range errs {
		lines = append(lines, p.String())
	}
	return services.Wrap(services.ErrValidation, "plan", "validate",
		fmt.Sprintf("%d problem(s)\n  %s", len(errs), strings.Join(lines, "\n  ")), nil)
}
