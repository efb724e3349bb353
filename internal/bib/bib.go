// Package bib loads a BibTeX database and resolves citation markers
// against it. Citation order is first-seen order of each distinct key
// scanning the document top to bottom; a key cited again keeps its
// first-assigned order.
package bib

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nickng/bibtex"

	"github.com/scivant/go-mdsci/internal/scan"
)

// Sentinel errors for bibliography operations.
var (
	ErrParse        = errors.New("bibliography parse failed")
	ErrDuplicateKey = errors.New("duplicate bibliography key")
)

// Entry is one parsed bibliography record.
type Entry struct {
	Key    string
	Type   string            // article, book, inproceedings, ...
	Fields map[string]string // lowercased field name -> value
}

// Database is a parsed bibliography, keyed by citation key.
// Key uniqueness is enforced at parse time.
type Database struct {
	entries map[string]Entry
}

// Load parses BibTeX from r. A malformed record or a duplicate key is a
// hard error: a broken database cannot be safely partially trusted.
func Load(r io.Reader) (*Database, error) {
	parsed, err := bibtex.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	db := &Database{entries: make(map[string]Entry, len(parsed.Entries))}
	for i, raw := range parsed.Entries {
		key := raw.CiteName
		if _, exists := db.entries[key]; exists {
			return nil, fmt.Errorf("%w: %q (entries %d and %d)", ErrDuplicateKey, key, indexOf(parsed.Entries, key), i+1)
		}
		fields := make(map[string]string, len(raw.Fields))
		for name, value := range raw.Fields {
			fields[strings.ToLower(name)] = value.String()
		}
		db.entries[key] = Entry{Key: key, Type: raw.Type, Fields: fields}
	}
	return db, nil
}

// LoadFile parses the BibTeX database at path.
func LoadFile(path string) (*Database, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from host configuration
	if err != nil {
		return nil, fmt.Errorf("opening bibliography: %w", err)
	}
	defer f.Close()

	db, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// indexOf returns the 1-based position of the first entry with key.
func indexOf(entries []*bibtex.BibEntry, key string) int {
	for i, e := range entries {
		if e.CiteName == key {
			return i + 1
		}
	}
	return 0
}

// Len returns the number of entries.
func (db *Database) Len() int { return len(db.entries) }

// Lookup returns the entry for key.
func (db *Database) Lookup(key string) (Entry, bool) {
	e, ok := db.entries[key]
	return e, ok
}

// Reference is a resolved citation with its assigned order.
type Reference struct {
	Entry Entry
	Order int // 1-based, first-seen
}

// Resolution maps every cited key to its reference.
type Resolution struct {
	References []Reference // sorted by Order
	orders     map[string]int
}

// OrderOf returns the assigned order for key.
func (r *Resolution) OrderOf(key string) (int, bool) {
	n, ok := r.orders[key]
	return n, ok
}

// UnresolvedError reports a cited key absent from the database.
type UnresolvedError struct {
	Key    string
	Line   int
	Column int
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved citation %q at line %d, column %d", e.Key, e.Line, e.Column)
}

// Resolve assigns citation order to markers. An unresolved key is a
// hard error naming the key and its location; markers are never
// silently dropped.
func (db *Database) Resolve(markers []scan.Citation) (*Resolution, error) {
	res := &Resolution{orders: make(map[string]int)}
	for _, m := range markers {
		if _, hasOrder := res.orders[m.Key]; hasOrder {
			continue
		}
		entry, ok := db.entries[m.Key]
		if !ok {
			return nil, &UnresolvedError{Key: m.Key, Line: m.Line, Column: m.Column}
		}
		order := len(res.References) + 1
		res.orders[m.Key] = order
		res.References = append(res.References, Reference{Entry: entry, Order: order})
	}
	return res, nil
}

// FormatEntry renders one entry as Markdown for the references section.
// A pure function of the entry fields: stable across runs, no locale
// dependence.
func FormatEntry(e Entry) string {
	var parts []string

	if authors := e.Fields["author"]; authors != "" {
		parts = append(parts, strings.ReplaceAll(authors, " and ", ", "))
	}
	if title := e.Fields["title"]; title != "" {
		parts = append(parts, "*"+strings.Trim(title, "{}")+"*")
	}
	if venue := venueOf(e); venue != "" {
		parts = append(parts, venue)
	}
	if year := e.Fields["year"]; year != "" {
		parts = append(parts, year)
	}

	s := strings.Join(parts, ". ")
	if s != "" {
		s += "."
	}
	return s
}

// venueOf picks the publication venue field by entry type convention.
func venueOf(e Entry) string {
	for _, field := range []string{"journal", "booktitle", "publisher", "institution", "school", "howpublished"} {
		if v := e.Fields[field]; v != "" {
			return strings.Trim(v, "{}")
		}
	}
	return ""
}
