// Package scriptconfig finds the user-configurable constants declared at the
// top of a generated script and rewrites them with user-supplied values.
// Scripts are treated as text; nothing here parses Python or JavaScript.
package scriptconfig

import (
	"regexp"
	"strings"

	"github.com/mfenderov/scriptforge/pkg/models"
)

// headerEnd matches the first line that is no longer part of the
// declarations block: a function, class, selector table or main guard.
var headerEnd = regexp.MustCompile(`^\s*(?:(?:async\s+)?def\s|class\s|if\s+__name__\s*==|(?:async\s+)?function[\s*]|(?:export\s+)?(?:const|let|var)\s+\w+\s*=\s*(?:async\s*)?\(.*\)\s*=>|(?:(?:const|let|var)\s+)?[A-Z0-9_]*(?:SELECTORS?|LOCATORS?|XPATHS?)\s*=\s*[\{\[])`)

// assignment matches NAME = "literal" and its common variants:
// const/let/var declarations, type annotations, r/b/u string prefixes,
// single quotes, numeric literals and trailing comments.
var assignment = regexp.MustCompile(`^\s*(?:(?:const|let|var)\s+)?([A-Z][A-Z0-9_]*)\s*(?::\s*[A-Za-z_][\w\[\], .]*)?=\s*(?:([rRbBuU]{0,2})("(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*')|(-?\d+(?:\.\d+)?))\s*;?\s*(?:#.*|//.*)?$`)

var includeKeywords = []string{
	"USERNAME", "USER", "PASSWORD", "PASS", "EMAIL", "LOGIN", "ACCOUNT",
	"URL", "PATH", "DRIVER", "DIRECTORY", "DIR", "FOLDER", "FILE", "DOWNLOAD",
	"HASHTAG", "SEARCH", "QUERY", "TERM", "KEYWORD",
	"TIMEOUT", "DELAY", "WAIT",
	"TOKEN", "SECRET", "KEY",
}

var excludeKeywords = []string{"SELECTOR", "XPATH", "CSS", "LOCATOR"}

var placeholderPrefixes = []string{"your_", "your-", "todo", "changeme", "change_me", "placeholder", "xxx"}

// Detect returns the configurable fields declared in the script header,
// in order of first appearance. Identical input always yields identical output.
func Detect(script string) []models.ConfigField {
	var fields []models.ConfigField
	seen := make(map[string]bool)

	for i, line := range strings.Split(script, "\n") {
		if headerEnd.MatchString(line) {
			break
		}

		m := assignment.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		if seen[name] || hasAny(name, excludeKeywords) {
			continue
		}

		field := models.ConfigField{Name: name, Line: i + 1}
		if m[4] != "" {
			field.Kind = models.KindNumber
			field.Value = m[4]
		} else {
			field.Kind = models.KindString
			field.Raw = strings.ContainsAny(m[2], "rR")
			field.Value = unquote(m[3], field.Raw)
		}

		placeholder := field.Kind == models.KindString && isPlaceholder(field.Value)
		if !placeholder && !hasAny(name, includeKeywords) {
			continue
		}

		field.Required = placeholder
		field.Input = models.InputPlain
		if isSecret(name, field.Value) {
			field.Input = models.InputSecret
		}

		seen[name] = true
		fields = append(fields, field)
	}

	return fields
}

func hasAny(name string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// isPlaceholder reports whether a literal is a stand-in the user must replace.
func isPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return true
	}
	if strings.Contains(v, "example.com") || strings.Contains(v, "_here") {
		return true
	}
	if strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">") {
		return true
	}
	for _, p := range placeholderPrefixes {
		if strings.HasPrefix(v, p) {
			return true
		}
	}
	return false
}

// isSecret is a display hint: credential-like names, or a placeholder that
// mentions a password.
func isSecret(name, value string) bool {
	for _, kw := range []string{"PASSWORD", "PASSWD", "SECRET", "TOKEN", "APIKEY"} {
		if strings.Contains(name, kw) {
			return true
		}
	}
	for _, seg := range strings.Split(name, "_") {
		if seg == "KEY" || seg == "PASS" || seg == "PWD" {
			return true
		}
	}
	return strings.Contains(strings.ToLower(value), "password")
}

// unquote strips the quotes of a string literal. Raw literals keep their
// body verbatim; others have the common backslash escapes resolved.
func unquote(literal string, raw bool) string {
	body := literal[1 : len(literal)-1]
	if raw || !strings.Contains(body, `\`) {
		return body
	}

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i == len(body)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '"', '\'':
			b.WriteByte(body[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
