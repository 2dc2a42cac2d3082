// Package stream serializes tagged fields into the two flat token streams
// stored per document and parses them back into positioned entries.
//
// Each entry is a seven digit position, the composite token code and one
// trailing space. Every field is wrapped in newlines so patterns can anchor
// on field boundaries. The stemmed stream leaves out non-indexable tokens
// and marks dividers with an extra space; the raw stream keeps every token.
package stream

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/lang"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/tagger"
)

// PosWidth is the fixed width of the position column.
const PosWidth = 7

// Streams holds the serialized forms of one document.
type Streams struct {
	Stemmed string
	Raw     string
}

// Serialize renders both streams for the tagged fields.
func Serialize(fields []tagger.FieldTokens, m *lang.Model) Streams {
	var stemmed, raw strings.Builder
	for _, f := range fields {
		if len(f.Tokens) == 0 {
			continue
		}
		stemmed.WriteByte('\n')
		raw.WriteByte('\n')
		for _, tok := range f.Tokens {
			writeEntry(&raw, tok.Pos, tok.Code(false))
			if !tok.HasAny(m.NonIndexable) {
				writeEntry(&stemmed, tok.Pos, tok.Code(f.Role.Stem()))
			}
			if tok.HasAny(m.Dividers) {
				stemmed.WriteByte(' ')
			}
		}
		stemmed.WriteByte('\n')
		raw.WriteByte('\n')
	}
	return Streams{Stemmed: stemmed.String(), Raw: raw.String()}
}

func writeEntry(b *strings.Builder, pos int, code string) {
	p := strconv.Itoa(pos)
	for i := len(p); i < PosWidth; i++ {
		b.WriteByte('0')
	}
	b.WriteString(p)
	b.WriteString(code)
	b.WriteByte(' ')
}

// Entry is one parsed stream entry.
type Entry struct {
	Pos    int
	Prefix string
	Case   lang.CaseClass
	Text   string
	// Start and End are byte offsets of the entry within the stream,
	// End excluding the trailing space.
	Start int
	End   int
}

// Code reassembles the composite token code.
func (e Entry) Code() string {
	return e.Prefix + string(e.Case.Digit()) + e.Text
}

// Segment is a run of entries with no gap between them. Field boundaries
// and dividers both end a segment.
type Segment []Entry

var entryRe = regexp.MustCompile(`(\d{7})([A-Z]{2})(\d)(\S*) `)

// Parse splits a stream into segments.
func Parse(s string) []Segment {
	matches := entryRe.FindAllStringSubmatchIndex(s, -1)
	var (
		segments []Segment
		cur      Segment
		lastEnd  = -1
	)
	for _, m := range matches {
		if lastEnd >= 0 && m[0] != lastEnd && len(cur) > 0 {
			segments = append(segments, cur)
			cur = nil
		}
		pos, _ := strconv.Atoi(s[m[2]:m[3]])
		cur = append(cur, Entry{
			Pos:    pos,
			Prefix: s[m[4]:m[5]],
			Case:   lang.CaseClass(s[m[6]] - '0'),
			Text:   s[m[8]:m[9]],
			Start:  m[0],
			End:    m[1] - 1,
		})
		lastEnd = m[1]
	}
	if len(cur) > 0 {
		segments = append(segments, cur)
	}
	return segments
}

// Entries flattens a stream into its entries in order.
func Entries(s string) []Entry {
	var out []Entry
	for _, seg := range Parse(s) {
		out = append(out, seg...)
	}
	return out
}

// PositionIndex maps each position to its index in entries.
func PositionIndex(entries []Entry) map[int]int {
	idx := make(map[int]int, len(entries))
	for i, e := range entries {
		idx[e.Pos] = i
	}
	return idx
}

// EntryAt returns the index of the entry covering byte offset off. When
// no entry covers it, the index of the first entry after off is returned
// with false.
func EntryAt(entries []Entry, off int) (int, bool) {
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case off < entries[mid].Start:
			hi = mid
		case off >= entries[mid].End:
			lo = mid + 1
		default:
			return mid, true
		}
	}
	return lo, false
}
