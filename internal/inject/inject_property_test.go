//go:build property

package inject

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestInjectorProperties validates that injection only ever adds the snippet.
func TestInjectorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4321)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	in := New(testSnippet)

	// Property: documents with a head get the snippet right before </head>
	properties.Property("snippet lands before the closing head tag", prop.ForAll(
		func(title, meta, body, trailer string) bool {
			doc := "<!DOCTYPE html><html><head><title>" + title + "</title>" +
				`<meta name="x" content="` + meta + `">` +
				"</head><body>" + body + "</body></html>" + trailer

			split := strings.Index(doc, "</head>")
			want := doc[:split] + testSnippet + doc[split:]

			return string(in.InjectBytes([]byte(doc))) == want
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AnyString(),
	))

	// Property: removing the snippet gives back the original document
	properties.Property("prefix and suffix reassemble the document", prop.ForAll(
		func(title, body string) bool {
			doc := "<html><head><title>" + title + "</title></head><body>" + body + "</body></html>"
			out := string(in.InjectBytes([]byte(doc)))
			i := strings.Index(out, testSnippet)
			if i < 0 {
				return false
			}
			return out[:i]+out[i+len(testSnippet):] == doc
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	// Property: documents without a head element are served unchanged
	properties.Property("headless documents are unchanged", prop.ForAll(
		func(body string) bool {
			doc := "<html><body>" + body + "</body></html>"
			return string(in.InjectBytes([]byte(doc))) == doc
		},
		gen.AlphaString(),
	))

	// Property: mismatched markup before </head> leaves the document unchanged
	properties.Property("malformed heads are unchanged", prop.ForAll(
		func(open, close string) bool {
			if open == close {
				return true
			}
			doc := "<html><head><" + open + "></" + close + "></head><body></body></html>"
			return string(in.InjectBytes([]byte(doc))) == doc
		},
		gen.OneConstOf("div", "span", "section", "p", "em"),
		gen.OneConstOf("div", "span", "section", "p", "em"),
	))

	properties.TestingRun(t)
}
