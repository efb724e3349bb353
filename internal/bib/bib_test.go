package bib

import (
	"errors"
	"strings"
	"testing"

	"github.com/scivant/go-mdsci/internal/scan"
)

const sampleBib = `
@article{knuth1984,
  author  = {Knuth, Donald E.},
  title   = {Literate Programming},
  journal = {The Computer Journal},
  year    = {1984},
}

@book{lamport1994,
  author    = {Lamport, Leslie},
  title     = {LaTeX: A Document Preparation System},
  publisher = {Addison-Wesley},
  year      = {1994},
}
`

func TestLoad(t *testing.T) {
	t.Parallel()

	db, err := Load(strings.NewReader(sampleBib))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if db.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", db.Len())
	}

	entry, ok := db.Lookup("knuth1984")
	if !ok {
		t.Fatal("Lookup(knuth1984) = false")
	}
	if entry.Type != "article" {
		t.Errorf("Type = %q, want article", entry.Type)
	}
	if entry.Fields["journal"] != "The Computer Journal" {
		t.Errorf("journal = %q", entry.Fields["journal"])
	}
}

func TestLoad_DuplicateKey(t *testing.T) {
	t.Parallel()

	input := `
@article{dup,
  title = {One},
  year = {2001},
}
@book{dup,
  title = {Two},
  year = {2002},
}
`
	_, err := Load(strings.NewReader(input))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("Load() error = %v, want ErrDuplicateKey", err)
	}
	if !strings.Contains(err.Error(), `"dup"`) {
		t.Errorf("error should name the key, got %q", err)
	}
	if !strings.Contains(err.Error(), "entries 1 and 2") {
		t.Errorf("error should name both locations, got %q", err)
	}
}

func TestLoad_Malformed(t *testing.T) {
	t.Parallel()

	_, err := Load(strings.NewReader("@article{broken, title = "))
	if !errors.Is(err, ErrParse) {
		t.Errorf("Load() error = %v, want ErrParse", err)
	}
}

func TestResolve_FirstSeenOrder(t *testing.T) {
	t.Parallel()

	db, err := Load(strings.NewReader(sampleBib))
	if err != nil {
		t.Fatal(err)
	}

	// B cited first, then A, then B again: B=1, A=2.
	markers := []scan.Citation{
		{Key: "lamport1994", Line: 1},
		{Key: "knuth1984", Line: 3},
		{Key: "lamport1994", Line: 9},
	}
	res, err := db.Resolve(markers)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if n, _ := res.OrderOf("lamport1994"); n != 1 {
		t.Errorf("OrderOf(lamport1994) = %d, want 1", n)
	}
	if n, _ := res.OrderOf("knuth1984"); n != 2 {
		t.Errorf("OrderOf(knuth1984) = %d, want 2", n)
	}

	if len(res.References) != 2 {
		t.Fatalf("References = %d, want 2", len(res.References))
	}
	if res.References[0].Entry.Key != "lamport1994" || res.References[1].Entry.Key != "knuth1984" {
		t.Errorf("references out of order: %v, %v", res.References[0].Entry.Key, res.References[1].Entry.Key)
	}
}

func TestResolve_UnresolvedKey(t *testing.T) {
	t.Parallel()

	db, err := Load(strings.NewReader(sampleBib))
	if err != nil {
		t.Fatal(err)
	}

	_, err = db.Resolve([]scan.Citation{{Key: "missing2020", Line: 7, Column: 12}})
	var ue *UnresolvedError
	if !errors.As(err, &ue) {
		t.Fatalf("Resolve() error = %v, want *UnresolvedError", err)
	}
	if ue.Key != "missing2020" || ue.Line != 7 {
		t.Errorf("UnresolvedError = %+v", ue)
	}
	if !strings.Contains(ue.Error(), "missing2020") || !strings.Contains(ue.Error(), "line 7") {
		t.Errorf("error message = %q", ue.Error())
	}
}

func TestFormatEntry(t *testing.T) {
	t.Parallel()

	db, err := Load(strings.NewReader(sampleBib))
	if err != nil {
		t.Fatal(err)
	}
	entry, _ := db.Lookup("knuth1984")

	got := FormatEntry(entry)
	for _, want := range []string{"Knuth, Donald E.", "*Literate Programming*", "The Computer Journal", "1984"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatEntry() = %q, missing %q", got, want)
		}
	}
}

func TestFormatEntry_Deterministic(t *testing.T) {
	t.Parallel()

	e := Entry{
		Key:  "x",
		Type: "article",
		Fields: map[string]string{
			"author":  "Doe, Jane and Roe, Richard",
			"title":   "A Result",
			"journal": "Annals",
			"year":    "2020",
		},
	}
	first := FormatEntry(e)
	for i := 0; i < 10; i++ {
		if got := FormatEntry(e); got != first {
			t.Fatalf("FormatEntry() unstable: %q vs %q", got, first)
		}
	}
	if first != "Doe, Jane, Roe, Richard. *A Result*. Annals. 2020." {
		t.Errorf("FormatEntry() = %q", first)
	}
}
