package inspector

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// noise is removed entirely; none of it helps locate elements.
const noise = "script, style, noscript, svg, canvas, meta, link, template, iframe, picture source"

// keptAttributes are the attributes a selector or locator can use.
var keptAttributes = map[string]bool{
	"id":          true,
	"name":        true,
	"class":       true,
	"type":        true,
	"href":        true,
	"action":      true,
	"method":      true,
	"value":       true,
	"placeholder": true,
	"title":       true,
	"alt":         true,
	"for":         true,
	"role":        true,
	"aria-label":  true,
	"data-testid": true,
	"data-test":   true,
	"data-qa":     true,
}

var (
	blankLines = regexp.MustCompile(`\n\s*\n+`)
	spaceRuns  = regexp.MustCompile(`\s+`)
)

// Condense strips a page down to the structure useful for writing selectors
// and returns it along with the page title.
func Condense(raw string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", "", err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("head").Remove()
	doc.Find(noise).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	root.Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			stripNode(n)
		}
	})

	markup, err := root.Html()
	if err != nil {
		return "", "", err
	}
	markup = blankLines.ReplaceAllString(strings.TrimSpace(markup), "\n")
	return markup, title, nil
}

// stripNode removes comments and unused attributes below n, and collapses
// long inline data URIs.
func stripNode(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.CommentNode:
			n.RemoveChild(c)
		case html.ElementNode:
			attrs := c.Attr[:0]
			for _, a := range c.Attr {
				if !keptAttributes[a.Key] {
					continue
				}
				if strings.HasPrefix(a.Val, "data:") {
					a.Val = "data:..."
				}
				attrs = append(attrs, a)
			}
			c.Attr = attrs
			stripNode(c)
		case html.TextNode:
			if strings.TrimSpace(c.Data) == "" {
				c.Data = "\n"
			} else {
				c.Data = spaceRuns.ReplaceAllString(c.Data, " ")
			}
		}
		c = next
	}
}
