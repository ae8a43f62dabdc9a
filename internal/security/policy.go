package security

import (
	"fmt"
	"strings"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
)

// Policy selects how a non-critical Finding is handled. Critical findings
// always block, regardless of Policy (spec.md §4.C design note).
type Policy string

const (
	// PolicyRemove strips the offending substring entirely.
	PolicyRemove Policy = "remove"
	// PolicyNeutralize replaces the match with an inert marker, preserving
	// surrounding text for readability.
	PolicyNeutralize Policy = "neutralize"
	// PolicyBlock rejects the whole payload on any finding.
	PolicyBlock Policy = "block"
)

// Outcome is the result of applying a Policy to a set of Findings.
type Outcome struct {
	Findings []Finding
	Blocked  bool
}

// Apply runs the given policy variant against findings. text is the
// original string the findings were found in (string payloads only; for
// JSON documents, callers redact leaf-by-leaf using the Finding.Path).
func Apply(policy Policy, findings []Finding, text string) (string, Outcome, error) {
	outcome := Outcome{Findings: findings}
	if len(findings) == 0 {
		return text, outcome, nil
	}

	for _, f := range findings {
		if f.Severity == SeverityCritical {
			outcome.Blocked = true
		}
	}
	if outcome.Blocked {
		return "", outcome, apperrors.New(apperrors.SecurityError, "blocked: critical finding detected")
	}

	switch policy {
	case PolicyBlock:
		outcome.Blocked = true
		return "", outcome, apperrors.New(apperrors.SecurityError, "blocked by security policy")
	case PolicyRemove:
		result := text
		for _, f := range findings {
			result = strings.ReplaceAll(result, f.Match, "")
		}
		return result, outcome, nil
	case PolicyNeutralize:
		result := text
		for _, f := range findings {
			result = strings.ReplaceAll(result, f.Match, fmt.Sprintf("[REDACTED:%s]", f.Name))
		}
		return result, outcome, nil
	default:
		return "", outcome, fmt.Errorf("security: unknown policy %q", policy)
	}
}
