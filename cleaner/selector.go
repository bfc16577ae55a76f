package cleaner

import (
	"bytes"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ApplyCSSSelector returns the concatenated outer HTML of every element
// matching selector. matched is false, and rawHTML is returned, when nothing matches.
func ApplyCSSSelector(rawHTML, selector string) (out string, matched bool, err error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return "", false, err
	}
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", false, err
	}

	nodes := cascadia.QueryAll(doc, sel)
	if len(nodes) == 0 {
		return rawHTML, false, nil
	}
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", false, err
		}
	}
	return buf.String(), true, nil
}
