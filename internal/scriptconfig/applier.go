package scriptconfig

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mfenderov/scriptforge/pkg/models"
)

// FieldValue is a user-supplied value for a detected field.
type FieldValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TextPatch rewrites one assignment statement. Pattern matches the
// statement up to the end of its literal; Replacement is the rendered
// literal. When Pattern finds nothing and PrependOnMiss is set, a fresh
// assignment is inserted at the top of the script.
type TextPatch struct {
	Name          string
	Pattern       *regexp.Regexp
	Replacement   string
	PrependOnMiss bool
}

// literalPattern matches any right-hand side the detector understands.
const literalPattern = `(?:[rRbBuU]{0,2}(?:"(?:[^"\\\n]|\\.)*"|'(?:[^'\\\n]|\\.)*')|-?\d+(?:\.\d+)?)`

// NewTextPatch builds the patch that sets name to the rendered literal.
func NewTextPatch(name, literal string) TextPatch {
	pattern := regexp.MustCompile(`(?m)^([ \t]*(?:(?:const|let|var)[ \t]+)?)` +
		regexp.QuoteMeta(name) +
		`([ \t]*(?::[^=\n]*)?)=[ \t]*` + literalPattern)

	return TextPatch{
		Name:          name,
		Pattern:       pattern,
		Replacement:   literal,
		PrependOnMiss: true,
	}
}

// Apply rewrites the first matching statement, keeping its indentation,
// declaration keyword and type annotation. It reports whether a statement
// was found.
func (p TextPatch) Apply(script string) (string, bool) {
	loc := p.Pattern.FindStringSubmatchIndex(script)
	if loc == nil {
		if !p.PrependOnMiss {
			return script, false
		}
		return prepend(script, p.Name+" = "+p.Replacement), false
	}

	prefix := script[loc[2]:loc[3]]
	annotation := strings.TrimRight(script[loc[4]:loc[5]], " \t")
	stmt := prefix + p.Name + annotation + " = " + p.Replacement

	return script[:loc[0]] + stmt + script[loc[1]:], true
}

// prepend inserts line at the top of the script, after a shebang if any.
func prepend(script, line string) string {
	if strings.HasPrefix(script, "#!") {
		if nl := strings.IndexByte(script, '\n'); nl >= 0 {
			return script[:nl+1] + line + "\n" + script[nl+1:]
		}
		return script + "\n" + line + "\n"
	}
	return line + "\n" + script
}

// Apply sets each field with a non-empty value. Fields left empty keep
// their original declaration. Statements that cannot be found are
// prepended so the override still takes effect.
func Apply(script string, values []FieldValue) string {
	detected := make(map[string]models.ConfigField)
	for _, f := range Detect(script) {
		detected[f.Name] = f
	}

	for _, v := range values {
		if v.Value == "" {
			continue
		}
		patch := NewTextPatch(v.Name, Render(v.Name, v.Value, detected[v.Name].Kind))

		var found bool
		script, found = patch.Apply(script)
		if !found {
			slog.Debug("assignment not found, prepended", "field", v.Name)
		}
	}
	return script
}

// FieldOrder orders names by first appearance among the fields detected in
// script. Names the detector does not report follow in lexical order.
func FieldOrder(script string, names []string) []string {
	pos := make(map[string]int)
	for i, f := range Detect(script) {
		pos[f.Name] = i
	}

	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := pos[out[i]]
		pj, jok := pos[out[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// Render renders value as a literal for the named field. Numeric fields stay
// numbers when the value parses as one. Path-like fields use a raw string
// when that round-trips; everything else is a double-quoted string with
// backslashes escaped before quotes.
func Render(name, value string, kind models.ValueKind) string {
	if kind == models.KindNumber {
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			return value
		}
	}
	if isPathLike(name) && rawSafe(value) {
		return fmt.Sprintf(`r"%s"`, value)
	}
	return `"` + Escape(value) + `"`
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// Escape escapes value for a double-quoted literal.
func Escape(value string) string {
	return escaper.Replace(value)
}

func isPathLike(name string) bool {
	return hasAny(name, []string{"PATH", "DIR", "FOLDER", "FILE", "DRIVER"})
}

// rawSafe reports whether value can be written as r"..." unchanged.
func rawSafe(value string) bool {
	return !strings.ContainsAny(value, "\"\n\r") && !strings.HasSuffix(value, `\`)
}
