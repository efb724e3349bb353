// Package rewrite produces the transformed document: notation spans
// replaced by artifact embeds, citation markers replaced by reference
// links, a references section appended. Every byte outside a recognized
// span is copied unchanged; this is the strongest correctness contract
// of the whole pipeline, and the splice in Apply is written around it.
package rewrite

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/scivant/go-mdsci/internal/bib"
	"github.com/scivant/go-mdsci/internal/scan"
)

// ItemKind says what a classified span turns into.
type ItemKind int

const (
	// Math is a plain equation, inline or display.
	Math ItemKind = iota
	// NumberedMath is a display equation carrying a label, rendered
	// with an equation number and an anchor.
	NumberedMath
	// Figure is a display block carrying a gnuplot script, rendered to
	// a captioned figure with a label and an anchor.
	Figure
	// CrossRef is a reference marker resolving to a registered label.
	CrossRef
)

// Item is a classified span ready for rendering or linking.
type Item struct {
	Span    scan.Span
	Kind    ItemKind
	Math    string // source to render (label directive stripped) for math and figure kinds
	Label   string // NumberedMath/Figure label, or CrossRef target
	RefKind string // CrossRef only: "equ" or "fig"
	Number  string // NumberedMath/Figure only: assigned display number
}

// RefKindError reports a ref: marker of an unknown kind.
type RefKindError struct {
	Kind string
	Line int
}

func (e *RefKindError) Error() string {
	return fmt.Sprintf("unknown reference kind %q at line %d", e.Kind, e.Line)
}

// RefSyntaxError reports a malformed ref: marker.
type RefSyntaxError struct {
	Marker string
	Line   int
}

func (e *RefSyntaxError) Error() string {
	return fmt.Sprintf("malformed reference marker %q at line %d", e.Marker, e.Line)
}

// UnknownLabelError reports a cross-reference to a label no equation
// declared.
type UnknownLabelError struct {
	Label string
	Line  int
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("reference to unknown label %q at line %d", e.Label, e.Line)
}

// Classify assigns each scanned span a role and numbers the labeled
// display blocks in document order. Equations and figures count
// independently; headNum prefixes both ("3.2." yields "3.2.1",
// "3.2.2", ...). The returned map is the label registry used to
// resolve cross-references in both directions.
func Classify(spans []scan.Span, headNum string) ([]Item, map[string]string, error) {
	items := make([]Item, 0, len(spans))
	labels := make(map[string]string)
	equCounter := 0
	figCounter := 0

	for _, sp := range spans {
		if sp.Kind == scan.Block {
			// A block span's source starts right after the opening $$,
			// so a directive sits on the first non-blank line:
			//   $$
			//   ref:equ:label
			//   ...math...
			//   $$
			// A ref:fig body is a gnuplot script instead of math.
			head, body, _ := strings.Cut(strings.TrimLeft(sp.Source, "\n"), "\n")
			head = strings.TrimSpace(head)
			if !strings.HasPrefix(head, "ref:") {
				items = append(items, Item{Span: sp, Kind: Math, Math: sp.Source})
				continue
			}
			kind, label, ok := strings.Cut(head[len("ref:"):], ":")
			if !ok || label == "" {
				return nil, nil, &RefSyntaxError{Marker: head, Line: sp.Line}
			}
			switch kind {
			case "equ":
				equCounter++
				number := headNum + strconv.Itoa(equCounter)
				labels[label] = number
				items = append(items, Item{
					Span:   sp,
					Kind:   NumberedMath,
					Math:   body,
					Label:  label,
					Number: number,
				})
			case "fig":
				figCounter++
				number := headNum + strconv.Itoa(figCounter)
				labels[label] = number
				items = append(items, Item{
					Span:    sp,
					Kind:    Figure,
					Math:    body,
					Label:   label,
					RefKind: "fig",
					Number:  number,
				})
			default:
				return nil, nil, &RefKindError{Kind: kind, Line: sp.Line}
			}
			continue
		}

		if !strings.HasPrefix(sp.Source, "ref:") {
			items = append(items, Item{Span: sp, Kind: Math, Math: sp.Source})
			continue
		}
		kind, label, ok := strings.Cut(strings.TrimSpace(sp.Source[len("ref:"):]), ":")
		if !ok || label == "" {
			return nil, nil, &RefSyntaxError{Marker: strings.TrimSpace(sp.Source), Line: sp.Line}
		}
		if kind != "equ" && kind != "fig" {
			return nil, nil, &RefKindError{Kind: kind, Line: sp.Line}
		}
		items = append(items, Item{Span: sp, Kind: CrossRef, Label: label, RefKind: kind})
	}

	return items, labels, nil
}

// Resolved pairs a classified item with its render outcome. Exactly one
// of ArtifactName and Err is set for math items; both are empty for
// cross-references.
type Resolved struct {
	Item         Item
	ArtifactName string
	Err          error
}

// Document splices the resolved spans and citations back into source
// and appends the references section. Pure: identical inputs always
// produce identical output.
func Document(source string, resolved []Resolved, labels map[string]string, citations []scan.Citation, res *bib.Resolution) (string, error) {
	reps := make([]replacement, 0, len(resolved)+len(citations))

	for _, r := range resolved {
		text, err := replacementFor(r, labels)
		if err != nil {
			return "", err
		}
		reps = append(reps, replacement{start: r.Item.Span.Start, end: r.Item.Span.End, text: text})
	}

	for _, c := range citations {
		order, ok := res.OrderOf(c.Key)
		if !ok {
			// Resolve() either covers every marker or fails; a gap here
			// is a programming error upstream.
			return "", fmt.Errorf("citation %q has no assigned order", c.Key)
		}
		reps = append(reps, replacement{start: c.Start, end: c.End, text: CitationLink(c.Key, order)})
	}

	out, err := apply(source, reps)
	if err != nil {
		return "", err
	}

	if res != nil && len(res.References) > 0 {
		out += ReferencesSection(res.References)
	}
	return out, nil
}

func replacementFor(r Resolved, labels map[string]string) (string, error) {
	it := r.Item
	switch it.Kind {
	case CrossRef:
		number, ok := labels[it.Label]
		if !ok {
			return "", &UnknownLabelError{Label: it.Label, Line: it.Span.Line}
		}
		if it.RefKind == "fig" {
			return FigureRef(it.Label, number), nil
		}
		return EquationRef(it.Label, number), nil

	case NumberedMath:
		if r.Err != nil {
			return ErrorMarker(scan.Block, it.Math, r.Err.Error()), nil
		}
		return NumberedEquation(r.ArtifactName, it.Label, it.Number), nil

	case Figure:
		if r.Err != nil {
			return ErrorMarker(scan.Block, it.Math, r.Err.Error()), nil
		}
		return FigureEmbed(r.ArtifactName, it.Label, it.Number), nil

	default:
		if r.Err != nil {
			return ErrorMarker(it.Span.Kind, it.Math, r.Err.Error()), nil
		}
		if it.Span.Kind == scan.Block {
			return BlockEquation(r.ArtifactName), nil
		}
		return InlineEquation(r.ArtifactName), nil
	}
}

// replacement substitutes text for the half-open byte range [start,end).
type replacement struct {
	start, end int
	text       string
}

// apply splices replacements into source. Ranges must be in bounds and
// non-overlapping; everything between them is copied byte for byte.
func apply(source string, reps []replacement) (string, error) {
	sort.Slice(reps, func(i, j int) bool { return reps[i].start < reps[j].start })

	var b strings.Builder
	b.Grow(len(source))
	pos := 0
	for _, r := range reps {
		if r.start < pos || r.end > len(source) || r.start > r.end {
			return "", fmt.Errorf("replacement range [%d,%d) overlaps or out of bounds (pos %d, len %d)",
				r.start, r.end, pos, len(source))
		}
		b.WriteString(source[pos:r.start])
		b.WriteString(r.text)
		pos = r.end
	}
	b.WriteString(source[pos:])
	return b.String(), nil
}
