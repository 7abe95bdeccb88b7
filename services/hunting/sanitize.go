package hunting

import (
	"regexp"
	"strings"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
)

// Policy names the branch SanitizeFilter took.
type Policy string

const (
	PolicyUnchanged            Policy = "unchanged"
	PolicyRewritten            Policy = "rewritten"
	PolicyFallbackEmpty        Policy = "fallback_empty"
	PolicyFallbackUnknownField Policy = "fallback_unknown_field"
	PolicyFallbackMalformed    Policy = "fallback_malformed"
)

// SanitizeResult is the predicate actually sent to the warehouse.
type SanitizeResult struct {
	Input     string `json:"input"`
	Predicate string `json:"predicate"`
	Policy    Policy `json:"policy"`
	// UnknownFields lists the identifiers that forced a fallback.
	UnknownFields []string `json:"unknown_fields,omitempty"`
}

type rewriteRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Applied in order. Field names the log schema does not have are mapped
// onto substring matches over message.
var rewriteRules = []rewriteRule{
	{regexp.MustCompile(`(?i)event_type\s*=\s*['"]?authentication['"]?`), "LOWER(message) LIKE '%authentication%'"},
	{regexp.MustCompile(`(?i)authentication\.type\s*=\s*['"]?credential-stuffing['"]?`), "LOWER(message) LIKE '%credential%'"},
	{regexp.MustCompile(`(?i)authentication\.failure_reason\s*=\s*['"]?invalid_password['"]?`), "LOWER(message) LIKE '%invalid password%'"},
	{regexp.MustCompile(`(?i)failed_login_count\s*>\s*\d+`), "LOWER(message) LIKE '%failed login%'"},
	{regexp.MustCompile(`(?i)source_ip\s*=\s*['"]?([\d.]+)['"]?`), "ip = '${1}'"},
}

var (
	stringLiteral = regexp.MustCompile(`'(?:[^']|'')*'`)
	identifier    = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_.]*`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// Identifiers a predicate may reference besides the log columns.
var sqlWords = map[string]bool{
	"and": true, "or": true, "not": true, "like": true, "ilike": true, "in": true,
	"is": true, "null": true, "true": true, "false": true, "between": true,
	"lower": true, "upper": true, "trim": true, "length": true, "coalesce": true,
	"cast": true, "as": true, "text": true, "varchar": true, "timestamptz": true,
	"interval": true, "now": true, "current_timestamp": true, "current_date": true,
	"date": true, "escape": true,
}

var logColumns = map[string]bool{"ip": true, "timestamp": true, "message": true}

// SanitizeFilter rewrites a free-form WHERE clause onto the log schema
// (ip, timestamp, message). It never fails: anything unusable becomes TRUE.
func SanitizeFilter(expr string) SanitizeResult {
	res := SanitizeResult{Input: expr}

	out := expr
	for _, rule := range rewriteRules {
		out = rule.pattern.ReplaceAllString(out, rule.replacement)
	}
	out, balanced := stripStatementNoise(out)
	out = strings.TrimSpace(whitespace.ReplaceAllString(out, " "))

	if out == "" {
		res.Predicate = warehouse.MatchAll
		res.Policy = PolicyFallbackEmpty
		return res
	}

	if !balanced {
		res.Predicate = warehouse.MatchAll
		res.Policy = PolicyFallbackMalformed
		return res
	}

	if unknown := unknownIdentifiers(out); len(unknown) > 0 {
		res.Predicate = warehouse.MatchAll
		res.Policy = PolicyFallbackUnknownField
		res.UnknownFields = unknown
		return res
	}

	res.Predicate = out
	res.Policy = PolicyRewritten
	if out == strings.TrimSpace(expr) {
		res.Policy = PolicyUnchanged
	}
	return res
}

// stripStatementNoise drops SQL comments and statement terminators that
// appear outside single-quoted literals. balanced is false when a literal
// or block comment is left open or parentheses do not pair up.
func stripStatementNoise(s string) (out string, balanced bool) {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			end := closingQuote(s, i+1)
			if end < 0 {
				b.WriteString(s[i:])
				return b.String(), false
			}
			b.WriteString(s[i : end+1])
			i = end
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				i = len(s)
			} else {
				i += nl - 1
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return b.String(), false
			}
			b.WriteByte(' ')
			i += end + 3
		case c == ';':
		case c == '(':
			depth++
			b.WriteByte(c)
		case c == ')':
			depth--
			if depth < 0 {
				return b.String(), false
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), depth == 0
}

// closingQuote returns the index of the quote ending a literal that starts
// at from, treating '' as an escaped quote, or -1.
func closingQuote(s string, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] != '\'' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			i++
			continue
		}
		return i
	}
	return -1
}

func unknownIdentifiers(predicate string) []string {
	bare := stringLiteral.ReplaceAllString(predicate, " ")
	bare = strings.ReplaceAll(bare, `"`, " ")

	var unknown []string
	seen := map[string]bool{}
	for _, id := range identifier.FindAllString(bare, -1) {
		key := strings.ToLower(id)
		if logColumns[key] || sqlWords[key] || seen[key] {
			continue
		}
		seen[key] = true
		unknown = append(unknown, id)
	}
	return unknown
}
