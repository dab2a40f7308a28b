// Package extractor separates a raw model response into the primary and
// alternate scripts. Strategies run in order: sentinel markers, fenced code
// blocks, then the whole response.
package extractor

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/mfenderov/scriptforge/internal/prompt"
	"github.com/mfenderov/scriptforge/pkg/models"
)

// WarnAmbiguous is reported when the response did not follow the format contract.
const WarnAmbiguous = "could not fully separate scripts"

// Strategy is one layer of the extraction chain.
type Strategy interface {
	Name() string
	Extract(raw string) models.ScriptPair
}

// Result is the outcome of running the chain.
type Result struct {
	Pair     models.ScriptPair
	Strategy string
	Warning  string
}

// Chain runs strategies in order.
type Chain struct {
	strategies []Strategy
}

// NewChain builds a chain from the given strategies, tried in order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// DefaultChain is markers, then fences, then raw.
func DefaultChain() *Chain {
	return NewChain(
		NewMarkerStrategy(prompt.SeleniumSection, prompt.PlaywrightSection),
		FenceStrategy{},
		RawStrategy{},
	)
}

// Extract runs the default chain.
func Extract(raw string) Result {
	return DefaultChain().Extract(raw)
}

// Extract returns the first complete pair. When no strategy yields both
// scripts, the first partial pair wins and the result carries a warning.
// A partial pair never lacks its primary while raw has content: the primary
// is then taken from the first later strategy that recovers one.
// Raw is always kept on the pair.
func (c *Chain) Extract(raw string) Result {
	var partial *Result
	var primary string

	for _, s := range c.strategies {
		pair := s.Extract(raw)
		pair.Raw = raw

		if pair.Complete() {
			res := Result{Pair: pair, Strategy: s.Name()}
			if s.Name() != markerStrategyName {
				res.Warning = WarnAmbiguous
			}
			return res
		}
		if partial == nil && (pair.Primary != "" || pair.Alternate != "") {
			partial = &Result{Pair: pair, Strategy: s.Name(), Warning: WarnAmbiguous}
		}
		if primary == "" {
			primary = pair.Primary
		}
	}

	if partial != nil {
		if partial.Pair.Primary == "" {
			partial.Pair.Primary = primary
		}
		slog.Debug("partial script extraction", "strategy", partial.Strategy)
		return *partial
	}
	return Result{
		Pair:     models.ScriptPair{Raw: raw},
		Strategy: "none",
		Warning:  WarnAmbiguous,
	}
}

const markerStrategyName = "markers"

// MarkerStrategy slices text strictly between each section's sentinels.
type MarkerStrategy struct {
	primary   prompt.Section
	alternate prompt.Section
}

// NewMarkerStrategy creates a marker strategy for the two sections.
func NewMarkerStrategy(primary, alternate prompt.Section) MarkerStrategy {
	return MarkerStrategy{primary: primary, alternate: alternate}
}

func (MarkerStrategy) Name() string { return markerStrategyName }

func (m MarkerStrategy) Extract(raw string) models.ScriptPair {
	return models.ScriptPair{
		Primary:   clean(section(raw, m.primary, m.alternate.Open)),
		Alternate: clean(section(raw, m.alternate, m.primary.Open)),
	}
}

// section returns the body after s.Open. The body ends at s.Close; a
// missing close (truncated generation) ends it at the other section's
// opening sentinel if one follows, otherwise at the end of the text.
func section(raw string, s prompt.Section, nextOpen string) string {
	start := strings.Index(raw, s.Open)
	if start < 0 {
		return ""
	}
	body := raw[start+len(s.Open):]

	if end := strings.Index(body, s.Close); end >= 0 {
		return body[:end]
	}
	if end := strings.Index(body, nextOpen); end >= 0 {
		return body[:end]
	}
	return body
}

var fenceBlock = regexp.MustCompile("(?s)```[\\w+#.-]*[ \\t]*\\n(.*?)```")

// FenceStrategy assigns fenced code blocks in order of appearance.
type FenceStrategy struct{}

func (FenceStrategy) Name() string { return "fences" }

func (FenceStrategy) Extract(raw string) models.ScriptPair {
	var blocks []string
	for _, m := range fenceBlock.FindAllStringSubmatch(raw, -1) {
		if body := clean(m[1]); body != "" {
			blocks = append(blocks, body)
		}
	}

	var pair models.ScriptPair
	if len(blocks) > 0 {
		pair.Primary = blocks[0]
	}
	if len(blocks) > 1 {
		pair.Alternate = blocks[1]
	}
	return pair
}

// RawStrategy returns the whole response, minus fence and section marker
// lines, as the primary.
type RawStrategy struct{}

func (RawStrategy) Name() string { return "raw" }

func (RawStrategy) Extract(raw string) models.ScriptPair {
	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if !isFenceLine(line) && !isMarkerLine(line) {
			kept = append(kept, line)
		}
	}
	return models.ScriptPair{Primary: strings.TrimSpace(strings.Join(kept, "\n"))}
}

var fenceLine = regexp.MustCompile("^\\s*```[\\w+#.-]*\\s*$")

func isFenceLine(line string) bool {
	return fenceLine.MatchString(line)
}

func isMarkerLine(line string) bool {
	line = strings.TrimSpace(line)
	for _, s := range prompt.Sections() {
		if line == s.Open || line == s.Close {
			return true
		}
	}
	return false
}

// clean strips fence lines the model added around a slice, then trims.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	lines := strings.Split(s, "\n")
	for len(lines) > 0 && isFenceLine(lines[0]) {
		lines = lines[1:]
	}
	for len(lines) > 0 && isFenceLine(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
