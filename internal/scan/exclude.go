package scan

import (
	"sort"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ranges is a sorted, merged set of half-open byte ranges.
type ranges []rng

type rng struct {
	start, stop int
}

// covers reports whether offset falls inside any range.
func (r ranges) covers(offset int) bool {
	i := sort.Search(len(r), func(i int) bool { return r[i].stop > offset })
	return i < len(r) && r[i].start <= offset
}

// codeRanges parses the document with goldmark and collects the byte
// ranges of every region where notation must never be recognized:
// fenced and indented code blocks, inline code spans, HTML blocks and
// raw inline HTML. Using the real CommonMark parser here is what makes
// the exclusion rules match what the downstream renderer will see.
func codeRanges(source []byte) ranges {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var out ranges
	add := func(seg text.Segment) {
		if seg.Stop > seg.Start {
			out = append(out, rng{seg.Start, seg.Stop})
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.FencedCodeBlock:
			addLines(n, add)
			if v.Info != nil {
				add(v.Info.Segment)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			addLines(n, add)
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			addLines(n, add)
			if v.HasClosure() {
				add(v.ClosureLine)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					add(t.Segment)
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			for i := 0; i < v.Segments.Len(); i++ {
				add(v.Segments.At(i))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return merge(out)
}

func addLines(n ast.Node, add func(text.Segment)) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		add(lines.At(i))
	}
}

// merge sorts ranges by start and coalesces overlapping or adjacent ones.
func merge(in ranges) ranges {
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool { return in[i].start < in[j].start })

	out := ranges{in[0]}
	for _, r := range in[1:] {
		last := &out[len(out)-1]
		if r.start <= last.stop {
			if r.stop > last.stop {
				last.stop = r.stop
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
