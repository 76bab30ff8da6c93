// Package vcf provides VCF header parsing functionality.
package vcf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// FieldType is the declared Type of an INFO or FORMAT field.
type FieldType int

const (
	Integer FieldType = iota
	Float
	Flag
	Character
	String
)

func (t FieldType) String() string {
	switch t {
	case Integer:
		return "Integer"
	case Float:
		return "Float"
	case Flag:
		return "Flag"
	case Character:
		return "Character"
	default:
		return "String"
	}
}

func parseFieldType(s string) (FieldType, error) {
	switch s {
	case "Integer":
		return Integer, nil
	case "Float":
		return Float, nil
	case "Flag":
		return Flag, nil
	case "Character":
		return Character, nil
	case "String":
		return String, nil
	}
	return 0, fmt.Errorf("%q is not a valid field type (types are case-sensitive)", s)
}

// CountType is the arity policy of an INFO or FORMAT field.
type CountType int

const (
	Fixed CountType = iota
	PerAltAllele
	PerAllele
	PerGenotype
	Unbounded
)

// HeaderLine is one "##" meta line, in its original form.
type HeaderLine struct {
	Key    string
	Value  string
	ID     string
	Fields map[string]string // parsed <K=V,...> values; nil for plain lines
}

// IsDictionaryEligible reports whether the line contributes its ID to the
// BCF2 string dictionary.
func (l *HeaderLine) IsDictionaryEligible() bool {
	switch l.Key {
	case "FILTER", "INFO", "FORMAT":
		return l.ID != ""
	}
	return false
}

// String renders the line as it appears in the header.
func (l *HeaderLine) String() string {
	return "##" + l.Key + "=" + l.Value
}

// FieldLine describes an INFO or FORMAT field.
type FieldLine struct {
	ID          string
	Number      int // meaningful for Fixed counts only
	CountType   CountType
	Type        FieldType
	Description string
}

// ContigLine describes a contig declaration.
type ContigLine struct {
	ID     string
	Length int64
}

// Header is a parsed VCF header.
type Header struct {
	lines     []*HeaderLine
	contigs   []ContigLine
	info      map[string]*FieldLine
	format    map[string]*FieldLine
	filter    map[string]*HeaderLine
	samples   []string
	sorted    []string
	index     map[string]int
	wasSorted bool
}

// Lines returns the meta lines in input order.
func (h *Header) Lines() []*HeaderLine { return h.lines }

// Contigs returns contig declarations in input order.
func (h *Header) Contigs() []ContigLine { return h.contigs }

// Info returns the INFO line with the given ID.
func (h *Header) Info(id string) (*FieldLine, bool) {
	l, ok := h.info[id]
	return l, ok
}

// Format returns the FORMAT line with the given ID.
func (h *Header) Format(id string) (*FieldLine, bool) {
	l, ok := h.format[id]
	return l, ok
}

// Filter returns the FILTER line with the given ID.
func (h *Header) Filter(id string) (*HeaderLine, bool) {
	l, ok := h.filter[id]
	return l, ok
}

// MetaDataForField looks up FORMAT then INFO metadata. Unknown fields get an
// auto-generated unbounded String description and false.
func (h *Header) MetaDataForField(field string) (*FieldLine, bool) {
	if l, ok := h.format[field]; ok {
		return l, true
	}
	if l, ok := h.info[field]; ok {
		return l, true
	}
	return &FieldLine{
		ID:          field,
		CountType:   Unbounded,
		Type:        String,
		Description: "Auto-generated string header for " + field,
	}, false
}

// Samples returns the sample names in declared column order.
func (h *Header) Samples() []string { return h.samples }

// NumSamples is the number of genotype columns.
func (h *Header) NumSamples() int { return len(h.samples) }

// SampleNamesInOrder returns the sample names sorted.
func (h *Header) SampleNamesInOrder() []string { return h.sorted }

// SampleIndex returns the column offset of a sample.
func (h *Header) SampleIndex(name string) (int, bool) {
	i, ok := h.index[name]
	return i, ok
}

// SamplesWereAlreadySorted reports whether the declared sample order matches
// the sorted order.
func (h *Header) SamplesWereAlreadySorted() bool { return h.wasSorted }

// Text renders the header back to VCF text (meta lines and #CHROM line).
func (h *Header) Text() []string {
	out := make([]string, 0, len(h.lines)+1)
	for _, l := range h.lines {
		out = append(out, l.String())
	}
	cols := []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}
	if len(h.samples) > 0 {
		cols = append(cols, "FORMAT")
		cols = append(cols, h.samples...)
	}
	return append(out, strings.Join(cols, "\t"))
}

// ParseHeader reads meta lines up to and including the #CHROM line.
// Trailing NUL padding, as stored in BCF2 headers, is ignored.
func ParseHeader(r io.Reader) (*Header, error) {
	reader := bufio.NewReader(r)
	h := &Header{
		info:   make(map[string]*FieldLine),
		format: make(map[string]*FieldLine),
		filter: make(map[string]*HeaderLine),
	}
	lineNumber := 0

	for {
		raw, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if raw == "" && err == io.EOF {
			break
		}
		lineNumber++

		line := strings.TrimRight(raw, "\r\n\x00")

		if strings.HasPrefix(line, "##") {
			if err := h.addMetaLine(line[2:]); err != nil {
				return nil, &ParseError{Line: lineNumber, Message: err.Error()}
			}
		} else if strings.HasPrefix(line, "#CHROM") {
			if err := h.setSamples(line); err != nil {
				return nil, &ParseError{Line: lineNumber, Message: err.Error()}
			}
			return h, nil
		} else if line != "" {
			return nil, &ParseError{
				Line:    lineNumber,
				Message: "expected #CHROM header line",
			}
		}

		if err == io.EOF {
			break
		}
	}

	return nil, &ParseError{
		Line:    lineNumber,
		Message: "no #CHROM header line found",
	}
}

func (h *Header) addMetaLine(text string) error {
	key, value, ok := strings.Cut(text, "=")
	if !ok {
		return fmt.Errorf("malformed meta line %q", text)
	}
	l := &HeaderLine{Key: key, Value: value}
	if strings.HasPrefix(value, "<") && strings.HasSuffix(value, ">") {
		fields, err := parseStructured(value[1 : len(value)-1])
		if err != nil {
			return fmt.Errorf("%s line: %w", key, err)
		}
		l.Fields = fields
		l.ID = fields["ID"]
	}
	h.lines = append(h.lines, l)

	switch key {
	case "contig":
		if l.Fields == nil {
			return fmt.Errorf("contig line without structured value")
		}
		c := ContigLine{ID: l.ID}
		if s, ok := l.Fields["length"]; ok {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("contig %s has invalid length %q", l.ID, s)
			}
			c.Length = n
		}
		h.contigs = append(h.contigs, c)
	case "INFO", "FORMAT":
		f, err := newFieldLine(l)
		if err != nil {
			return fmt.Errorf("%s line: %w", key, err)
		}
		if key == "INFO" {
			h.info[f.ID] = f
		} else {
			h.format[f.ID] = f
		}
	case "FILTER":
		if l.ID == "" {
			return fmt.Errorf("FILTER line without ID")
		}
		h.filter[l.ID] = l
	}
	return nil
}

func newFieldLine(l *HeaderLine) (*FieldLine, error) {
	if l.Fields == nil || l.ID == "" {
		return nil, fmt.Errorf("missing ID")
	}
	t, err := parseFieldType(l.Fields["Type"])
	if err != nil {
		return nil, err
	}
	f := &FieldLine{ID: l.ID, Type: t, Description: l.Fields["Description"]}
	switch number := l.Fields["Number"]; number {
	case "A":
		f.CountType = PerAltAllele
	case "R":
		f.CountType = PerAllele
	case "G":
		f.CountType = PerGenotype
	case ".", "":
		f.CountType = Unbounded
	default:
		n, err := strconv.Atoi(number)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Number %q for %s", number, l.ID)
		}
		f.CountType = Fixed
		f.Number = n
	}
	return f, nil
}

// parseStructured splits K=V pairs separated by commas, honoring quoted values.
func parseStructured(s string) (map[string]string, error) {
	out := make(map[string]string)
	var key bytes.Buffer
	var val bytes.Buffer
	inKey, inQuote, escaped := true, false, false

	flush := func() error {
		k := strings.TrimSpace(key.String())
		if k == "" {
			return fmt.Errorf("empty key in %q", s)
		}
		out[k] = val.String()
		key.Reset()
		val.Reset()
		inKey = true
		return nil
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			val.WriteByte(c)
			escaped = false
		case inQuote && c == '\\':
			escaped = true
		case c == '"':
			inQuote = !inQuote
		case inQuote:
			val.WriteByte(c)
		case inKey && c == '=':
			inKey = false
		case inKey:
			key.WriteByte(c)
		case c == ',':
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			val.WriteByte(c)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	if key.Len() > 0 || val.Len() > 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (h *Header) setSamples(line string) error {
	// Extract sample names from columns after FORMAT (index 9+)
	fields := strings.Split(line, "\t")
	if len(fields) > 9 {
		h.samples = fields[9:]
	}
	h.index = make(map[string]int, len(h.samples))
	for i, s := range h.samples {
		if _, dup := h.index[s]; dup {
			return fmt.Errorf("duplicate sample name %q", s)
		}
		h.index[s] = i
	}
	h.sorted = append([]string(nil), h.samples...)
	sort.Strings(h.sorted)
	h.wasSorted = sort.StringsAreSorted(h.samples)
	return nil
}

// ParseError represents an error during VCF header parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
