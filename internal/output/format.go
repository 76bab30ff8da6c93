package output

import (
	"strconv"
	"strings"

	"github.com/broadinstitute/picard-sub013/internal/variant"
)

// FormatValue renders a decoded attribute value as VCF text. Missing values
// render as ".".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "."
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(x)
	case float64:
		return formatFloat(x)
	case string:
		return x
	case []int:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ",")
	case []float64:
		parts := make([]string, len(x))
		for i, f := range x {
			parts[i] = formatFloat(f)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(x, ",")
	}
	return "."
}

// formatFloat prints the shortest text that round-trips the float32 stored
// in the file.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 32)
}

// FormatInfo renders the INFO column with keys in sorted order. Flags are
// written as bare keys.
func FormatInfo(vc *variant.Context) string {
	keys := vc.AttributeKeys()
	if len(keys) == 0 {
		return "."
	}
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		v, _ := vc.Attribute(k)
		if flag, ok := v.(bool); ok && flag {
			continue
		}
		b.WriteByte('=')
		b.WriteString(FormatValue(v))
	}
	return b.String()
}

func formatAlt(vc *variant.Context) string {
	alts := vc.AlternateAlleles()
	if len(alts) == 0 {
		return "."
	}
	parts := make([]string, len(alts))
	for i, a := range alts {
		parts[i] = a.Bases()
	}
	return strings.Join(parts, ",")
}

func formatQual(vc *variant.Context) string {
	if !vc.HasLog10PError() {
		return "."
	}
	return strconv.FormatFloat(vc.PhredQual(), 'f', -1, 32)
}

func formatInts(values []int) string {
	if values == nil {
		return "."
	}
	return FormatValue(values)
}
