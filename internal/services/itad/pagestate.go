package itad

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/titanous/json5"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Markers around the inline state objects of a game history page.
const (
	globalStateStart = "var g = "
	globalStateEnd   = ";\nvar page ="
	pageStateStart   = "var page = "
	pageStateEnd     = ";\nvar sentry ="
)

var errMarkersNotFound = errors.New("state markers not found")

// extractState decodes the object literal between start and end into v.
// Inline <script> bodies are searched first, then the raw page. The literal
// is parsed as JSON5 and never evaluated.
func extractState(body []byte, start, end string, v any) error {
	var raw string
	found := false
	for _, script := range inlineScripts(body) {
		if raw, found = between(script, start, end); found {
			break
		}
	}
	if !found {
		if raw, found = between(string(body), start, end); !found {
			return errMarkersNotFound
		}
	}

	if err := json5.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func between(s, start, end string) (string, bool) {
	i := strings.Index(s, start)
	if i < 0 {
		return "", false
	}
	from := i + len(start)
	j := strings.Index(s[from:], end)
	if j < 0 {
		return "", false
	}
	return s[from : from+j], true
}

// inlineScripts returns the text of every <script> element in the document.
func inlineScripts(body []byte) []string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var scripts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			if sb.Len() > 0 {
				scripts = append(scripts, sb.String())
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return scripts
}
