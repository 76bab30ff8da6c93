package bcf2

import (
	"errors"
	"fmt"
	"strings"

	"github.com/broadinstitute/picard-sub013/internal/variant"
	"github.com/broadinstitute/picard-sub013/internal/vcf"
)

// PassFilter is the implicit first dictionary entry.
const PassFilter = variant.PassFilter

var (
	errEmptyDictionary  = errors.New("dictionary header element was absent or empty")
	errNoContigs        = errors.New("didn't find any contig lines in BCF2 file header")
	errOffsetOutOfRange = errors.New("offset out of range")
)

// Dictionary maps record offsets to FILTER, INFO and FORMAT names. It is
// built once per file and never modified afterwards.
type Dictionary []string

// MakeDictionary builds the string dictionary from the header: PASS first,
// then every dictionary-eligible ID in header order, first occurrence wins.
// The result depends on the header alone.
func MakeDictionary(h *vcf.Header) (Dictionary, error) {
	seen := map[string]bool{PassFilter: true}
	dict := Dictionary{PassFilter}
	for _, line := range h.Lines() {
		if !line.IsDictionaryEligible() || seen[line.ID] {
			continue
		}
		seen[line.ID] = true
		dict = append(dict, line.ID)
	}
	if len(dict) == 0 {
		return nil, errEmptyDictionary
	}
	return dict, nil
}

// Lookup resolves an offset.
func (d Dictionary) Lookup(offset int) (string, error) {
	if offset < 0 || offset >= len(d) {
		return "", fmt.Errorf("dictionary %w: %d not in [0,%d)", errOffsetOutOfRange, offset, len(d))
	}
	return d[offset], nil
}

// Len is the number of entries.
func (d Dictionary) Len() int { return len(d) }

// ContigTable maps contig offsets to contig names in header order.
type ContigTable []string

// MakeContigTable collects contig IDs from the header. A header without
// contigs, or with a contig lacking an ID, cannot be decoded.
func MakeContigTable(h *vcf.Header) (ContigTable, error) {
	contigs := h.Contigs()
	if len(contigs) == 0 {
		return nil, errNoContigs
	}
	table := make(ContigTable, 0, len(contigs))
	for i, c := range contigs {
		if c.ID == "" {
			return nil, fmt.Errorf("found a contig with an invalid ID at contig line %d", i+1)
		}
		table = append(table, c.ID)
	}
	return table, nil
}

// Lookup resolves an offset.
func (t ContigTable) Lookup(offset int) (string, error) {
	if offset < 0 || offset >= len(t) {
		return "", fmt.Errorf("contig %w: %d not in [0,%d)", errOffsetOutOfRange, offset, len(t))
	}
	return t[offset], nil
}

// Len is the number of contigs.
func (t ContigTable) Len() int { return len(t) }

// CollapseStringList packs several strings into one CHAR value as
// ",s1,s2,s3". A single string is returned unchanged.
func CollapseStringList(strs []string) string {
	switch len(strs) {
	case 0:
		return ""
	case 1:
		return strs[0]
	}
	var b strings.Builder
	for _, s := range strs {
		b.WriteByte(',')
		b.WriteString(s)
	}
	return b.String()
}

// ExplodeStringList reverses CollapseStringList.
func ExplodeStringList(collapsed string) []string {
	return strings.Split(strings.TrimPrefix(collapsed, ","), ",")
}

// IsCollapsedString reports whether s starts with the collapsed-list marker.
func IsCollapsedString(s string) bool {
	return len(s) > 0 && s[0] == ','
}
