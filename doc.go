// Package mdsci rewrites scientific Markdown: inline and display math
// spans become cached SVG artifacts typeset by an external LaTeX
// toolchain, and citation markers become links into a references
// section resolved from a BibTeX database.
//
// # Quick Start
//
// Create a processor, process a document, and close when done:
//
//	proc, err := mdsci.NewProcessor(
//	    mdsci.WithCacheDir(".mdsci-cache"),
//	    mdsci.WithBibliographyFile("refs.bib"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer proc.Close()
//
//	res, err := proc.ProcessDocument(ctx, mdsci.Document{
//	    Name:    "chapter.md",
//	    Content: src,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("out/chapter.md", []byte(res.Content), 0644)
//
// # Processing Pipeline
//
// Each document goes through these stages:
//
//  1. Scan for $...$ / $$...$$ spans and [@key] citation markers,
//     skipping code blocks, code spans, and raw HTML
//  2. Hash each span's content and parameters; look up the artifact
//     cache and render only misses (latex + dvisvgm)
//  3. Resolve citations against the BibTeX database in first-citation
//     order
//  4. Splice artifact embeds and citation links back into the text and
//     append the references section
//
// A span that fails to typeset is replaced by a visible error marker
// carrying the toolchain diagnostic; the rest of the document is
// processed normally. Structural problems (an unterminated delimiter,
// an unknown citation key, a missing toolchain) fail the document.
//
// # Notation
//
// Display math may declare a label and receive an equation number:
//
//	$$
//	ref:equ:mass
//	E = mc^2
//	$$
//
// A ref:fig directive declares a figure instead; its body is a gnuplot
// script plotted to SVG and embedded with a caption:
//
//	$$
//	ref:fig:wave
//	plot sin(x)
//	$$
//
// Inline markers $ref:equ:mass$ and $ref:fig:wave$ link to declared
// labels. Document.HeadNumber prefixes equation and figure numbers, so
// a chapter numbered "3.2." yields equations (3.2.1), (3.2.2), and so
// on. Equations and figures count independently.
//
// # Caching
//
// Artifacts are content-addressed: the cache key is a digest of the
// span source and every parameter that affects its rendering. Editing
// a document re-renders only the spans that changed; re-running on an
// unchanged tree renders nothing.
//
// # Toolchain Requirements
//
// Rendering requires latex and dvisvgm on PATH. NewProcessor probes
// for them once and fails immediately if either is missing. Figure
// blocks additionally need gnuplot; it is only looked up when a
// document actually contains one.
package mdsci
