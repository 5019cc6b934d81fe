package logging

import (
	"regexp"
	"strings"
)

type replacement struct {
	pattern *regexp.Regexp
	mask    string
}

var replacements = []replacement{
	{regexp.MustCompile(`doc=[A-Za-z0-9<*]+`), "doc=***"},
	{regexp.MustCompile(`dob=\d+`), "dob=******"},
	{regexp.MustCompile(`exp=\d+`), "exp=******"},
	{regexp.MustCompile(`(?i)document_number["']?\s*[:=]\s*["']?[A-Za-z0-9<]+["']?`), "document_number=***"},
	{regexp.MustCompile(`(?i)date_of_birth["']?\s*[:=]\s*["']?\d+["']?`), "date_of_birth=******"},
	{regexp.MustCompile(`(?i)date_of_expiry["']?\s*[:=]\s*["']?\d+["']?`), "date_of_expiry=******"},
}

// minSecretLen keeps very short values from wiping unrelated text.
const minSecretLen = 3

// Sanitize masks MRZ key/value occurrences such as doc=..., dob=..., exp=...
// and JSON-ish document_number / date_of_birth / date_of_expiry pairs.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	for _, r := range replacements {
		s = r.pattern.ReplaceAllString(s, r.mask)
	}
	return s
}

// Redactor sanitizes text and additionally blanks out literal secret values
// that may appear without a recognizable key in front of them.
type Redactor struct {
	secrets []string
}

func NewRedactor(secrets ...string) *Redactor {
	r := &Redactor{}
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if len(s) >= minSecretLen {
			r.secrets = append(r.secrets, s)
		}
	}
	return r
}

func (r *Redactor) Redact(s string) string {
	s = Sanitize(s)
	if r == nil {
		return s
	}
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, strings.Repeat("*", len(secret)))
	}
	return s
}
