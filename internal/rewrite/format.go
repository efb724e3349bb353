package rewrite

import (
	"fmt"
	"html"
	"strings"

	"github.com/scivant/go-mdsci/internal/bib"
	"github.com/scivant/go-mdsci/internal/scan"
)

// InlineEquation embeds an inline artifact. The object element keeps
// the SVG selectable and lets the stylesheet align its baseline.
func InlineEquation(name string) string {
	return fmt.Sprintf(`<object class="equation_inline" data="assets/%s" type="image/svg+xml"></object>`, name)
}

// BlockEquation embeds an unnumbered display artifact.
func BlockEquation(name string) string {
	return fmt.Sprintf(
		"<div class=\"equation\"><div class=\"equation_inner\"><object data=\"assets/%s\" type=\"image/svg+xml\"></object></div></div>\n",
		name)
}

// NumberedEquation embeds a labeled display artifact with its number
// and an anchor for cross-references.
func NumberedEquation(name, label, number string) string {
	return fmt.Sprintf(
		"<div id=\"%s\" class=\"equation\"><div class=\"equation_inner\"><object data=\"assets/%s\" type=\"image/svg+xml\"></object></div><span>(%s)</span></div>\n",
		html.EscapeString(label), name, number)
}

// FigureEmbed embeds a rendered figure with its caption and an anchor
// for cross-references.
func FigureEmbed(name, label, number string) string {
	return fmt.Sprintf(
		"<figure id=\"%s\" class=\"figure\"><object data=\"assets/%s\" type=\"image/svg+xml\"></object><figcaption>Figure %s</figcaption></figure>\n",
		html.EscapeString(label), name, number)
}

// EquationRef links to a numbered equation.
func EquationRef(label, number string) string {
	return fmt.Sprintf(`<a class="equ_ref" href="#%s">Eq. (%s)</a>`, html.EscapeString(label), number)
}

// FigureRef links to a registered figure.
func FigureRef(label, number string) string {
	return fmt.Sprintf(`<a class="fig_ref" href="#%s">Figure %s</a>`, html.EscapeString(label), number)
}

// CitationLink links a citation marker to its entry in the references
// section.
func CitationLink(key string, order int) string {
	return fmt.Sprintf(`<a class="bib_ref" href="#ref-%s">[%d]</a>`, html.EscapeString(key), order)
}

// ErrorMarker stands in for a span whose rendering failed. The source
// stays visible as code and the diagnostic travels with it, so a broken
// equation never silently disappears from the document.
func ErrorMarker(kind scan.Kind, source, message string) string {
	src := html.EscapeString(source)
	msg := html.EscapeString(message)
	if kind == scan.Block {
		return fmt.Sprintf(
			"<div class=\"equation_error\"><pre><code>%s</code></pre><p>%s</p></div>\n", src, msg)
	}
	return fmt.Sprintf(`<span class="equation_error" title="%s"><code>%s</code></span>`, msg, src)
}

// ReferencesSection renders the resolved bibliography, ordered by
// first citation, with one anchored entry per reference.
func ReferencesSection(refs []bib.Reference) string {
	var b strings.Builder
	b.WriteString("\n## References\n\n")
	for _, r := range refs {
		fmt.Fprintf(&b, "%d. <span id=\"ref-%s\">%s</span>\n",
			r.Order, html.EscapeString(r.Entry.Key), bib.FormatEntry(r.Entry))
	}
	return b.String()
}
