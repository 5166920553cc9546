package wolfram

import (
	"fmt"
	"html"
	"strings"
)

const noResultsHTML = `<div class="alert alert-warning" role="alert">No results</div>`

// ToMarkdown renders results as Markdown, with images inlined as base64 data
// URIs. An empty result list renders the same warning block the HTML form
// uses, so both feed the same renderer downstream.
func ToMarkdown(results []Result) string {
	if len(results) == 0 {
		return noResultsHTML
	}

	var md strings.Builder
	for _, r := range results {
		if r.Title != "" {
			fmt.Fprintf(&md, "## %s\n\n", r.Title)
		}
		if r.Plaintext != "" {
			fmt.Fprintf(&md, "**Expr:** %s\n\n", r.Plaintext)
		}
		if r.ImgBase64 != "" {
			fmt.Fprintf(&md, "![Image](data:%s;base64,%s)\n\n", r.contentTypeOrDefault(), r.ImgBase64)
		}
		if r.MInput != "" {
			fmt.Fprintf(&md, "**Mathematica Input:** `%s`\n\n", r.MInput)
		}
		if r.MOutput != "" {
			fmt.Fprintf(&md, "**Mathematica Output:** `%s`\n\n", r.MOutput)
		}
		if len(r.RelatedQueries) > 0 {
			md.WriteString("**Related Queries:**\n\n")
			for _, q := range r.RelatedQueries {
				fmt.Fprintf(&md, "- %s\n", q)
			}
			md.WriteString("\n")
		}
		md.WriteString("---\n\n")
	}

	out := md.String()
	out = strings.TrimSuffix(out, "---\n\n")
	return out
}

// ToHTML renders results as an HTML fragment with all text escaped. Image
// data is emitted verbatim inside a data URI.
func ToHTML(results []Result) string {
	if len(results) == 0 {
		return noResultsHTML
	}

	var b strings.Builder
	b.WriteString(`<div style="border: 1px solid #ccc; padding: 10px; margin: 10px; border-radius: 5px;">`)
	for i, r := range results {
		if r.Title != "" {
			fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(r.Title))
		}
		if r.Plaintext != "" {
			fmt.Fprintf(&b, "<p><strong>Expr:</strong> %s</p>\n", html.EscapeString(r.Plaintext))
		}
		if r.ImgBase64 != "" {
			fmt.Fprintf(&b, `<p><img src='data:%s;base64,%s' alt='Image' /></p>`,
				html.EscapeString(r.contentTypeOrDefault()), r.ImgBase64)
		}
		if r.MInput != "" {
			fmt.Fprintf(&b, "<p><strong>Mathematica Input:</strong> %s</p>\n", html.EscapeString(r.MInput))
		}
		if r.MOutput != "" {
			fmt.Fprintf(&b, "<p><strong>Mathematica Output:</strong> %s</p>\n", html.EscapeString(r.MOutput))
		}
		if len(r.RelatedQueries) > 0 {
			b.WriteString("<p><strong>Related Queries:</strong></p>\n<ul>\n")
			for _, q := range r.RelatedQueries {
				fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(q))
			}
			b.WriteString("</ul>\n")
		}
		if i < len(results)-1 {
			b.WriteString("<hr />")
		}
	}
	b.WriteString("</div>")
	return b.String()
}

func (r Result) contentTypeOrDefault() string {
	if r.ImgContentType != "" {
		return r.ImgContentType
	}
	return "image/png"
}
