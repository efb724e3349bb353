package scan

import (
	"errors"
	"testing"
)

func TestScan_InlineMath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []Span
		wantErr bool
	}{
		{
			name:  "single inline span",
			input: "a $b$ c",
			want: []Span{
				{Kind: Inline, Source: "b", Start: 2, End: 5, Line: 1, Column: 3},
			},
		},
		{
			name:  "two spans on one line",
			input: "$x$ and $y$",
			want: []Span{
				{Kind: Inline, Source: "x", Start: 0, End: 3, Line: 1, Column: 1},
				{Kind: Inline, Source: "y", Start: 8, End: 11, Line: 1, Column: 9},
			},
		},
		{
			name:  "whitespace preserved in source",
			input: "$ a + b $",
			want: []Span{
				{Kind: Inline, Source: " a + b ", Start: 0, End: 9, Line: 1, Column: 1},
			},
		},
		{
			name:  "spans on separate lines",
			input: "first $a$\nsecond $b$\n",
			want: []Span{
				{Kind: Inline, Source: "a", Start: 6, End: 9, Line: 1, Column: 7},
				{Kind: Inline, Source: "b", Start: 17, End: 20, Line: 2, Column: 8},
			},
		},
		{
			name:  "escaped dollar is not a delimiter",
			input: `costs \$5 but $x$ is math`,
			want: []Span{
				{Kind: Inline, Source: "x", Start: 14, End: 17, Line: 1, Column: 15},
			},
		},
		{
			name:  "midline display math",
			input: "total is $$x+y$$ dollars",
			want: []Span{
				{Kind: Block, Source: "x+y", Start: 9, End: 16, Line: 1, Column: 10},
			},
		},
		{
			name:    "unterminated midline display",
			input:   "a $$ b",
			wantErr: true,
		},
		{
			name:    "unterminated inline",
			input:   "a $b c",
			wantErr: true,
		},
		{
			name:  "no math at all",
			input: "plain text\nmore text",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Scan(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Scan() error = nil, want error")
				}
				var ue *UnterminatedError
				if !errors.As(err, &ue) {
					t.Fatalf("Scan() error = %T, want *UnterminatedError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			assertSpans(t, got.Spans, tt.want)
		})
	}
}

func TestScan_BlockMath(t *testing.T) {
	t.Parallel()

	input := "before\n$$\ne = mc^2\n$$\nafter\n"
	got, err := Scan(input)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got.Spans) != 1 {
		t.Fatalf("Scan() spans = %d, want 1", len(got.Spans))
	}

	sp := got.Spans[0]
	if sp.Kind != Block {
		t.Errorf("Kind = %v, want Block", sp.Kind)
	}
	if sp.Source != "\ne = mc^2\n" {
		t.Errorf("Source = %q, want %q", sp.Source, "\ne = mc^2\n")
	}
	if sp.Line != 2 {
		t.Errorf("Line = %d, want 2", sp.Line)
	}
	if input[sp.Start:sp.End] != "$$\ne = mc^2\n$$" {
		t.Errorf("byte range slices %q", input[sp.Start:sp.End])
	}
}

func TestScan_SingleLineBlock(t *testing.T) {
	t.Parallel()

	got, err := Scan("$$e^{i\\pi}+1=0$$\n")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got.Spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(got.Spans))
	}
	if got.Spans[0].Kind != Block || got.Spans[0].Source != "e^{i\\pi}+1=0" {
		t.Errorf("span = %+v", got.Spans[0])
	}
}

func TestScan_UnterminatedBlock(t *testing.T) {
	t.Parallel()

	_, err := Scan("text\n$$\nx = 1\n")
	var ue *UnterminatedError
	if !errors.As(err, &ue) {
		t.Fatalf("Scan() error = %v, want *UnterminatedError", err)
	}
	if ue.Kind != Block {
		t.Errorf("Kind = %v, want Block", ue.Kind)
	}
	if ue.Line != 2 {
		t.Errorf("Line = %d, want 2", ue.Line)
	}
	if ue.Offset != 5 {
		t.Errorf("Offset = %d, want 5", ue.Offset)
	}
}

func TestScan_OpenBlockStopsAtFence(t *testing.T) {
	t.Parallel()

	// An open $$ must not swallow a code fence; the delimiter is
	// unterminated at the point the fence begins.
	_, err := Scan("$$\na+b\n```\ncode $x$\n```\n$$\n")
	var ue *UnterminatedError
	if !errors.As(err, &ue) {
		t.Fatalf("Scan() error = %v, want *UnterminatedError", err)
	}
	if ue.Kind != Block {
		t.Errorf("Kind = %v, want Block", ue.Kind)
	}
	if ue.Offset != 0 || ue.Line != 1 {
		t.Errorf("Offset = %d, Line = %d, want 0, 1", ue.Offset, ue.Line)
	}
}

func TestScan_CodeRegionsExcluded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "fenced code block",
			input: "```\n$not math$\n$$\nalso not\n$$\n```\n",
		},
		{
			name:  "fenced block with info string",
			input: "```sh\necho $HOME\n```\n",
		},
		{
			name:  "tilde fence",
			input: "~~~\n$x$\n~~~\n",
		},
		{
			name:  "indented code block",
			input: "para\n\n    $x$ in code\n\npara\n",
		},
		{
			name:  "inline code span",
			input: "use `$PATH` here\n",
		},
		{
			name:  "html pre block",
			input: "<pre>\n$x$\n</pre>\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Scan(tt.input)
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if len(got.Spans) != 0 {
				t.Errorf("Scan() found %d spans in code region: %+v", len(got.Spans), got.Spans)
			}
		})
	}
}

func TestScan_MathAroundCode(t *testing.T) {
	t.Parallel()

	input := "$a$\n```\n$skip$\n```\n$b$\n"
	got, err := Scan(input)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got.Spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(got.Spans))
	}
	if got.Spans[0].Source != "a" || got.Spans[1].Source != "b" {
		t.Errorf("spans = %+v", got.Spans)
	}
}

func TestScan_Citations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantKeys  []string
		wantSpans int
	}{
		{
			name:     "single citation",
			input:    "as shown in [@knuth1984]",
			wantKeys: []string{"knuth1984"},
		},
		{
			name:     "multiple citations keep order",
			input:    "[@b] then [@a] then [@b]",
			wantKeys: []string{"b", "a", "b"},
		},
		{
			name:     "key charset",
			input:    "[@doe:2020-draft.v2]",
			wantKeys: []string{"doe:2020-draft.v2"},
		},
		{
			name:     "plain bracket is not a citation",
			input:    "[link](https://example.com) and [note]",
			wantKeys: nil,
		},
		{
			name:     "empty key is not a citation",
			input:    "[@] nothing",
			wantKeys: nil,
		},
		{
			name:      "citation inside math is inert",
			input:     "$f([@x])$",
			wantKeys:  nil,
			wantSpans: 1,
		},
		{
			name:     "citation inside code is inert",
			input:    "`[@notacite]`",
			wantKeys: nil,
		},
		{
			name:      "citation next to math",
			input:     "$x$ [@key]",
			wantKeys:  []string{"key"},
			wantSpans: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Scan(tt.input)
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			var keys []string
			for _, c := range got.Citations {
				keys = append(keys, c.Key)
			}
			if len(keys) != len(tt.wantKeys) {
				t.Fatalf("citations = %v, want %v", keys, tt.wantKeys)
			}
			for i := range keys {
				if keys[i] != tt.wantKeys[i] {
					t.Errorf("citation[%d] = %q, want %q", i, keys[i], tt.wantKeys[i])
				}
			}
			if len(got.Spans) != tt.wantSpans {
				t.Errorf("spans = %d, want %d", len(got.Spans), tt.wantSpans)
			}
		})
	}
}

func TestScan_CitationByteRange(t *testing.T) {
	t.Parallel()

	input := "see [@smith]."
	got, err := Scan(input)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got.Citations) != 1 {
		t.Fatalf("citations = %d, want 1", len(got.Citations))
	}
	c := got.Citations[0]
	if input[c.Start:c.End] != "[@smith]" {
		t.Errorf("byte range slices %q, want %q", input[c.Start:c.End], "[@smith]")
	}
}

func TestScan_NonOverlapping(t *testing.T) {
	t.Parallel()

	input := "$a$ [@k] $b$\n$$\nc\n$$\ntext $d$ [@j]\n"
	got, err := Scan(input)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	type region struct{ start, end int }
	var all []region
	for _, s := range got.Spans {
		all = append(all, region{s.Start, s.End})
	}
	for _, c := range got.Citations {
		all = append(all, region{c.Start, c.End})
	}
	for i, a := range all {
		if a.start >= a.end {
			t.Errorf("region %d empty or inverted: %+v", i, a)
		}
		for j, b := range all {
			if i == j {
				continue
			}
			if a.start < b.end && b.start < a.end {
				t.Errorf("regions overlap: %+v and %+v", a, b)
			}
		}
	}
}

func TestScan_EmptyInput(t *testing.T) {
	t.Parallel()

	got, err := Scan("")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got.Spans) != 0 || len(got.Citations) != 0 {
		t.Errorf("Scan(\"\") = %+v, want empty", got)
	}
}

func assertSpans(t *testing.T, got, want []Span) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("spans = %+v, want %+v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("span[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
