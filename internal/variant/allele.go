// Package variant provides the in-memory variant record model: alleles,
// genotypes, and the record context produced by the decoders.
package variant

import (
	"fmt"
	"strings"
)

// Allele is a single allele at a site. The zero value is not valid; use NewAllele.
type Allele struct {
	bases string
	ref   bool
}

// NoCall is the allele used for uncalled genotype positions (".").
var NoCall = Allele{bases: "."}

// NewAllele creates an allele from its bases. isRef marks the reference allele.
func NewAllele(bases string, isRef bool) (Allele, error) {
	if bases == "" {
		return Allele{}, fmt.Errorf("empty allele bases")
	}
	a := Allele{bases: bases, ref: isRef}
	if isRef && (a.IsNoCall() || a.IsSymbolic()) {
		return Allele{}, fmt.Errorf("reference allele cannot be %q", bases)
	}
	if !a.IsNoCall() && !a.IsSymbolic() && !acceptableBases(bases) {
		return Allele{}, fmt.Errorf("unexpected base in allele bases %q", bases)
	}
	return a, nil
}

// MustAllele is like NewAllele but panics on invalid input. Used for literals.
func MustAllele(bases string, isRef bool) Allele {
	a, err := NewAllele(bases, isRef)
	if err != nil {
		panic(err)
	}
	return a
}

func acceptableBases(bases string) bool {
	if bases == "*" {
		return true
	}
	for i := 0; i < len(bases); i++ {
		switch bases[i] {
		case 'A', 'C', 'G', 'T', 'N', 'a', 'c', 'g', 't', 'n':
		default:
			return false
		}
	}
	return true
}

// Bases returns the allele bases (or the symbolic/no-call text).
func (a Allele) Bases() string { return a.bases }

// IsReference reports whether this is the reference allele.
func (a Allele) IsReference() bool { return a.ref }

// IsNoCall reports whether this is the no-call allele.
func (a Allele) IsNoCall() bool { return a.bases == "." }

// IsCalled reports whether this allele is not a no-call.
func (a Allele) IsCalled() bool { return !a.IsNoCall() }

// IsSymbolic reports whether the allele is symbolic (<DEL>) or a breakend.
func (a Allele) IsSymbolic() bool {
	b := a.bases
	if len(b) == 0 {
		return false
	}
	if b[0] == '<' && b[len(b)-1] == '>' {
		return true
	}
	return strings.ContainsAny(b, "[]") || (len(b) > 1 && (b[0] == '.' || b[len(b)-1] == '.'))
}

// Length is the number of bases, zero for symbolic alleles.
func (a Allele) Length() int {
	if a.IsSymbolic() {
		return 0
	}
	return len(a.bases)
}

// Equal compares bases and reference status.
func (a Allele) Equal(o Allele) bool {
	return a.ref == o.ref && a.bases == o.bases
}

// String renders the allele, reference alleles with a trailing '*'.
func (a Allele) String() string {
	if a.ref {
		return a.bases + "*"
	}
	return a.bases
}
