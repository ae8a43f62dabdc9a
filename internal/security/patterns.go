package security

import "regexp"

// Severity ranks a detected finding. Critical findings always block,
// regardless of the configured Policy.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// pattern is one entry in the detection table. scanText checks every
// entry in table order, so one string can yield findings from several
// patterns; each pattern reports only its first match.
type pattern struct {
	Name     string
	Regexp   *regexp.Regexp
	Severity Severity
}

// patterns covers the marker families named in spec.md §4.C: prompt
// injection, command injection, and script injection. Modeled on the
// teacher's sensitivePatterns regex table (infrastructure/security/sanitize.go),
// repurposed from credential redaction to these categories.
var patterns = []pattern{
	{
		Name:     "prompt injection: instruction override",
		Regexp:   regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+instructions`),
		Severity: SeverityCritical,
	},
	{
		Name:     "prompt injection: role override",
		Regexp:   regexp.MustCompile(`(?i)you\s+are\s+now\s+(in\s+)?(developer|admin|root|dan)\s+mode`),
		Severity: SeverityHigh,
	},
	{
		Name:     "prompt injection: system prompt probe",
		Regexp:   regexp.MustCompile(`(?i)(reveal|print|show)\s+(your\s+)?(system\s+prompt|instructions)`),
		Severity: SeverityMedium,
	},
	{
		Name:     "command injection: shell metacharacter chain",
		Regexp:   regexp.MustCompile("(?:;|&&|\\|\\|)\\s*(rm|curl|wget|nc|bash|sh|powershell)\\b"),
		Severity: SeverityCritical,
	},
	{
		Name:     "command injection: backtick substitution",
		Regexp:   regexp.MustCompile("`[^`]{1,200}`"),
		Severity: SeverityHigh,
	},
	{
		Name:     "script injection: inline script tag",
		Regexp:   regexp.MustCompile(`(?i)<script[\s>]`),
		Severity: SeverityCritical,
	},
	{
		Name:     "script injection: javascript protocol",
		Regexp:   regexp.MustCompile(`(?i)javascript:`),
		Severity: SeverityHigh,
	},
	{
		Name:     "script injection: event handler attribute",
		Regexp:   regexp.MustCompile(`(?i)\bon(load|error|click|mouseover)\s*=`),
		Severity: SeverityMedium,
	},
}

// Finding is one detected marker in a string leaf.
type Finding struct {
	Path     string
	Name     string
	Severity Severity
	Match    string
}

func scanText(path, text string) []Finding {
	var out []Finding
	for _, p := range patterns {
		if loc := p.Regexp.FindStringIndex(text); loc != nil {
			out = append(out, Finding{
				Path:     path,
				Name:     p.Name,
				Severity: p.Severity,
				Match:    text[loc[0]:loc[1]],
			})
		}
	}
	return out
}
