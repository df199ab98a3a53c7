// Package metadata derives credential requirements from static server
// descriptors. A server's base environment doubles as a declaration surface:
// values that look like placeholders ("${GITHUB_TOKEN}", "<insert key>", "")
// are unresolved secrets the user must supply, while literal values are
// settings that launch as-is.
package metadata

import (
	"regexp"
	"strings"

	"github.com/agentfleet/mcpmux/internal/config"
	"github.com/agentfleet/mcpmux/internal/domain"
)

// placeholderMarkers flag an env value as an unresolved secret rather than a
// literal setting. Matching is case-insensitive over the whole value.
var placeholderMarkers = []string{
	"${",
	"{{",
	"<",
	"[",
	"PLACEHOLDER",
	"YOUR_",
	"INSERT_",
	"CHANGE_ME",
	"REQUIRED",
	"NEEDED",
}

// knownCredentialPatterns classify an env var name by suffix. Order matters:
// the oauth/access pattern must win over the broader key/token pattern.
var knownCredentialPatterns = []struct {
	credType domain.CredentialType
	pattern  *regexp.Regexp
}{
	{domain.CredentialTypeOAuthToken, regexp.MustCompile(`(OAUTH|ACCESS)_TOKEN$`)},
	{domain.CredentialTypeAPIKey, regexp.MustCompile(`(_API_KEY|_KEY|_TOKEN)$`)},
	{domain.CredentialTypeUsername, regexp.MustCompile(`(USERNAME|USER|LOGIN)$`)},
	{domain.CredentialTypePassword, regexp.MustCompile(`(PASSWORD|PASS|SECRET)$`)},
	{domain.CredentialTypeURL, regexp.MustCompile(`(URL|ENDPOINT|HOST)$`)},
	{domain.CredentialTypeDatabase, regexp.MustCompile(`(DATABASE|DB)_(NAME|URL|CONNECTION)$`)},
}

// droppedNameTokens are stripped when deriving a display name from an env var.
var droppedNameTokens = map[string]struct{}{
	"MCP":      {},
	"SERVER":   {},
	"CLIENT":   {},
	"API":      {},
	"KEY":      {},
	"TOKEN":    {},
	"SECRET":   {},
	"PASS":     {},
	"PASSWORD": {},
}

// Infer returns the full ordered requirement set for a server descriptor:
// explicitly declared requirements first, verbatim and in declared order,
// then one synthesized requirement per placeholder env var not already
// covered by an explicit requirement. The same env var never appears twice.
func Infer(entry config.ServerEntry) []domain.CredentialRequirement {
	reqs := make([]domain.CredentialRequirement, 0, len(entry.RequiredCredentials))
	covered := make(map[string]struct{}, len(entry.RequiredCredentials))

	for _, c := range entry.RequiredCredentials {
		req := c.Requirement()
		reqs = append(reqs, req)
		if req.EnvVar != "" {
			covered[req.EnvVar] = struct{}{}
		}
	}

	for _, key := range entry.EnvKeys() {
		if !IsPlaceholder(entry.Env[key]) {
			continue
		}
		if _, ok := covered[key]; ok {
			continue
		}
		covered[key] = struct{}{}

		reqs = append(reqs, domain.CredentialRequirement{
			Type:        detectType(key),
			Name:        displayName(key),
			Description: "Environment variable: " + key,
			Required:    true,
			EnvVar:      key,
		})
	}

	return reqs
}

// IsPlaceholder reports whether an env value is an unresolved secret marker
// rather than a literal value. Empty values always count as placeholders.
func IsPlaceholder(value string) bool {
	if value == "" {
		return true
	}

	upper := strings.ToUpper(value)
	for _, marker := range placeholderMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}

	return false
}

// detectType classifies an env var name against the known suffix patterns,
// first match wins.
func detectType(envVar string) domain.CredentialType {
	upper := strings.ToUpper(envVar)
	for _, p := range knownCredentialPatterns {
		if p.pattern.MatchString(upper) {
			return p.credType
		}
	}
	return domain.CredentialTypeGeneric
}

// displayName derives a human name from an env var: underscore tokens minus
// the well-known prefixes/suffixes, title-cased. "JIRA_API_KEY" -> "Jira".
// If every token is dropped, the whole key is title-cased instead.
func displayName(envVar string) string {
	words := strings.Split(envVar, "_")

	kept := make([]string, 0, len(words))
	for _, w := range words {
		if _, drop := droppedNameTokens[strings.ToUpper(w)]; !drop {
			kept = append(kept, w)
		}
	}

	if len(kept) == 0 {
		kept = words
	}

	for i, w := range kept {
		kept[i] = titleWord(w)
	}

	return strings.Join(kept, " ")
}

func titleWord(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
}

// Missing returns the subset of requirements that are required but absent
// from the stored credential map (keyed by display name).
func Missing(reqs []domain.CredentialRequirement, stored map[string]string) []domain.CredentialRequirement {
	var missing []domain.CredentialRequirement
	for _, req := range reqs {
		if !req.Required {
			continue
		}
		if _, ok := stored[req.Name]; !ok {
			missing = append(missing, req)
		}
	}
	return missing
}

// BuildEnv overlays resolved credential values onto the base environment.
// Each requirement maps its display-named value to its env var; requirements
// without an env var are not injected.
func BuildEnv(
	base map[string]string,
	creds map[string]string,
	reqs []domain.CredentialRequirement,
) map[string]string {
	env := make(map[string]string, len(base)+len(reqs))
	for k, v := range base {
		env[k] = v
	}

	for _, req := range reqs {
		if req.EnvVar == "" {
			continue
		}
		if value, ok := creds[req.Name]; ok {
			env[req.EnvVar] = value
		}
	}

	return env
}
