// Package scan locates math notation spans and citation markers in raw
// Markdown text. The scan is pure: it never modifies the input, and the
// byte ranges it reports can be used to slice the original text exactly.
package scan

import (
	"fmt"
	"strings"
)

// Kind distinguishes inline math from display (block) math.
type Kind int

const (
	// Inline is a `$...$` span inside a line of text.
	Inline Kind = iota
	// Block is a `$$...$$` display span. At the start of a line the
	// closing delimiter may sit on a later line; mid-line it must
	// close on the same line.
	Block
)

func (k Kind) String() string {
	switch k {
	case Inline:
		return "inline"
	case Block:
		return "block"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Span is a located occurrence of math notation.
// Start/End is a half-open byte range covering the delimiters;
// Source is the exact text between them, unmodified.
type Span struct {
	Kind   Kind
	Source string
	Start  int
	End    int
	Line   int // 1-based line of the opening delimiter
	Column int // 1-based byte column of the opening delimiter
}

// Citation is a located `[@key]` marker.
// Start/End is a half-open byte range covering the brackets.
type Citation struct {
	Key    string
	Start  int
	End    int
	Line   int
	Column int
}

// Result holds everything one scan found, in document order.
type Result struct {
	Spans     []Span
	Citations []Citation
}

// UnterminatedError reports an opening delimiter with no matching close.
type UnterminatedError struct {
	Kind   Kind
	Offset int // byte offset of the opening delimiter
	Line   int
	Column int
}

func (e *UnterminatedError) Error() string {
	return fmt.Sprintf("unterminated %s math delimiter at line %d, column %d (byte %d)",
		e.Kind, e.Line, e.Column, e.Offset)
}

// Scan walks the document line by line, skipping code regions, and
// returns all math spans and citation markers in start-offset order.
// An opening delimiter with no close before end of document is an error.
func Scan(source string) (*Result, error) {
	excluded := codeRanges([]byte(source))
	res := &Result{}

	inFence := false
	var fenceChar byte

	inBlock := false
	var blockStart, blockContentStart, blockLine, blockCol int

	lineStart := 0
	rest := source
	for lineno := 1; ; lineno++ {
		nl := strings.IndexByte(rest, '\n')
		var line string
		if nl < 0 {
			line = rest
			rest = ""
		} else {
			line = rest[:nl]
			rest = rest[nl+1:]
		}

		switch {
		case excluded.covers(lineStart) && !inBlock:
			// Inside an indented code block or HTML block; leave untouched.

		case isFenceLine(line) && !inBlock:
			marker := strings.TrimLeft(line, " ")[0]
			if !inFence {
				inFence = true
				fenceChar = marker
			} else if marker == fenceChar {
				inFence = false
			}

		case inFence:
			// Notation-looking text inside a fence is not notation.

		case inBlock:
			if isFenceLine(line) || excluded.covers(lineStart) {
				// A code region starts before the block closes. The
				// span must not swallow it; the open delimiter is
				// unterminated.
				return nil, &UnterminatedError{Kind: Block, Offset: blockStart, Line: blockLine, Column: blockCol}
			}
			if strings.HasPrefix(line, "$$") {
				res.Spans = append(res.Spans, Span{
					Kind:   Block,
					Source: source[blockContentStart:lineStart],
					Start:  blockStart,
					End:    lineStart + 2,
					Line:   blockLine,
					Column: blockCol,
				})
				inBlock = false
				// Anything after the closing $$ is ordinary text again.
				if err := scanLine(source, line[2:], lineStart+2, lineno, excluded, res); err != nil {
					return nil, err
				}
			}
			// Otherwise the line is block content; nothing to do.

		case strings.HasPrefix(line, "$$") && !excluded.covers(lineStart):
			if close := strings.Index(line[2:], "$$"); close >= 0 {
				// Single-line display math: $$e^{i\pi}$$
				res.Spans = append(res.Spans, Span{
					Kind:   Block,
					Source: line[2 : 2+close],
					Start:  lineStart,
					End:    lineStart + 2 + close + 2,
					Line:   lineno,
					Column: 1,
				})
				if err := scanLine(source, line[2+close+2:], lineStart+2+close+2, lineno, excluded, res); err != nil {
					return nil, err
				}
			} else {
				inBlock = true
				blockStart = lineStart
				blockContentStart = lineStart + 2
				blockLine = lineno
				blockCol = 1
			}

		default:
			if err := scanLine(source, line, lineStart, lineno, excluded, res); err != nil {
				return nil, err
			}
		}

		lineStart += len(line) + 1
		if nl < 0 {
			break
		}
	}

	if inBlock {
		return nil, &UnterminatedError{Kind: Block, Offset: blockStart, Line: blockLine, Column: blockCol}
	}
	return res, nil
}

// scanLine extracts inline math and citations from a single line.
// base is the byte offset of the line's first byte in the document;
// col reporting is relative to that base, not the physical line start,
// which only differs for the tail after a closing $$.
func scanLine(source, line string, base, lineno int, excluded ranges, res *Result) error {
	inMath := false
	var mathStart int

	i := 0
	for i < len(line) {
		abs := base + i
		if excluded.covers(abs) {
			i++
			continue
		}

		switch line[i] {
		case '\\':
			// Escaped character; \$ is not a delimiter.
			i += 2
			continue

		case '$':
			if !inMath && i+1 < len(line) && line[i+1] == '$' {
				// Display math mid-line: $$x+y$$ closes on the same line.
				close := strings.Index(line[i+2:], "$$")
				if close < 0 {
					return &UnterminatedError{Kind: Block, Offset: abs, Line: lineno, Column: i + 1}
				}
				res.Spans = append(res.Spans, Span{
					Kind:   Block,
					Source: line[i+2 : i+2+close],
					Start:  abs,
					End:    abs + 2 + close + 2,
					Line:   lineno,
					Column: i + 1,
				})
				i += 2 + close + 2
				continue
			}
			if !inMath {
				inMath = true
				mathStart = i
			} else {
				if i > mathStart+1 {
					res.Spans = append(res.Spans, Span{
						Kind:   Inline,
						Source: line[mathStart+1 : i],
						Start:  base + mathStart,
						End:    abs + 1,
						Line:   lineno,
						Column: mathStart + 1,
					})
				}
				inMath = false
			}

		case '[':
			if !inMath && i+1 < len(line) && line[i+1] == '@' {
				if key, end := citationKey(line, i); key != "" {
					res.Citations = append(res.Citations, Citation{
						Key:    key,
						Start:  base + i,
						End:    base + end,
						Line:   lineno,
						Column: i + 1,
					})
					i = end
					continue
				}
			}
		}
		i++
	}

	if inMath {
		return &UnterminatedError{Kind: Inline, Offset: base + mathStart, Line: lineno, Column: mathStart + 1}
	}
	return nil
}

// citationKey parses a `[@key]` marker starting at line[open] == '['.
// Returns the key and the index just past the closing bracket, or
// ("", 0) if the bracket does not close a well-formed marker.
func citationKey(line string, open int) (string, int) {
	j := open + 2
	for j < len(line) && isKeyByte(line[j]) {
		j++
	}
	if j == open+2 || j >= len(line) || line[j] != ']' {
		return "", 0
	}
	return line[open+2 : j], j + 1
}

// isKeyByte reports whether b may appear in a citation key.
// The set matches what BibTeX accepts in cite keys.
func isKeyByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '_' || b == '-' || b == ':' || b == '.' || b == '+' || b == '/':
		return true
	}
	return false
}

// isFenceLine reports whether the line opens or closes a fenced code
// block: a run of backticks or tildes after at most three spaces.
func isFenceLine(line string) bool {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return false
	}
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}
