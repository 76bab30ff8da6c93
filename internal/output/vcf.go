package output

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/broadinstitute/picard-sub013/internal/bcf2"
	"github.com/broadinstitute/picard-sub013/internal/variant"
	"github.com/broadinstitute/picard-sub013/internal/vcf"
)

// VCFWriter renders decoded records as VCF text.
type VCFWriter struct {
	w           *bufio.Writer
	header      *vcf.Header
	sitesOnly   bool
	withSamples bool
}

// NewVCFWriter creates a new VCF output writer. With sitesOnly set, the
// FORMAT and sample columns are omitted and genotypes are never decoded.
func NewVCFWriter(w io.Writer, header *vcf.Header, sitesOnly bool) *VCFWriter {
	return &VCFWriter{
		w:           bufio.NewWriter(w),
		header:      header,
		sitesOnly:   sitesOnly,
		withSamples: !sitesOnly && header.NumSamples() > 0,
	}
}

// WriteHeader writes the meta lines and the #CHROM line.
func (vw *VCFWriter) WriteHeader() error {
	lines := vw.header.Text()
	for i, line := range lines {
		if i == len(lines)-1 && vw.sitesOnly {
			line = "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO"
		}
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Write writes a record as one VCF line.
func (vw *VCFWriter) Write(vc *variant.Context) error {
	var lb strings.Builder
	lb.Grow(256)

	lb.WriteString(vc.Chrom())
	lb.WriteByte('\t')
	lb.WriteString(strconv.FormatInt(vc.Start(), 10))
	lb.WriteByte('\t')
	lb.WriteString(vc.ID())
	lb.WriteByte('\t')
	lb.WriteString(vc.Reference().Bases())
	lb.WriteByte('\t')
	lb.WriteString(formatAlt(vc))
	lb.WriteByte('\t')
	lb.WriteString(formatQual(vc))
	lb.WriteByte('\t')
	lb.WriteString(vc.FilterString())
	lb.WriteByte('\t')
	lb.WriteString(FormatInfo(vc))

	if vw.withSamples {
		if err := vw.writeSamples(&lb, vc); err != nil {
			return err
		}
	}

	lb.WriteByte('\n')
	_, err := vw.w.WriteString(lb.String())
	return err
}

// writeSamples appends the FORMAT column and one column per sample.
func (vw *VCFWriter) writeSamples(lb *strings.Builder, vc *variant.Context) error {
	genotypes, err := vc.Genotypes().All()
	if err != nil {
		return err
	}
	keys := formatKeys(genotypes)
	lb.WriteByte('\t')
	if len(keys) == 0 {
		lb.WriteByte('.')
	} else {
		lb.WriteString(strings.Join(keys, ":"))
	}

	for i := 0; i < vw.header.NumSamples(); i++ {
		lb.WriteByte('\t')
		if i >= len(genotypes) {
			lb.WriteByte('.')
			continue
		}
		g := genotypes[i]
		for j, key := range keys {
			if j > 0 {
				lb.WriteByte(':')
			}
			lb.WriteString(genotypeField(g, key, vc.Alleles()))
		}
		if len(keys) == 0 {
			lb.WriteByte('.')
		}
	}
	return nil
}

// formatKeys lists the FORMAT keys present in any genotype, GT first, then
// the standard keys, then extended keys sorted.
func formatKeys(genotypes []*variant.Genotype) []string {
	var hasGT, hasGQ, hasDP, hasAD, hasPL, hasFT bool
	extended := make(map[string]bool)
	for _, g := range genotypes {
		hasGT = hasGT || g.Ploidy() > 0
		hasGQ = hasGQ || g.HasGQ()
		hasDP = hasDP || g.HasDP()
		hasAD = hasAD || g.AD() != nil
		hasPL = hasPL || g.PL() != nil
		hasFT = hasFT || g.Filters() != ""
		for _, k := range g.ExtendedKeys() {
			extended[k] = true
		}
	}

	var keys []string
	for _, k := range []struct {
		key     string
		present bool
	}{
		{bcf2.GenotypeKey, hasGT},
		{bcf2.GenotypeQualKey, hasGQ},
		{bcf2.DepthKey, hasDP},
		{bcf2.AlleleDepthsKey, hasAD},
		{bcf2.PLKey, hasPL},
		{bcf2.GenotypeFilterKey, hasFT},
	} {
		if k.present {
			keys = append(keys, k.key)
		}
	}
	ext := make([]string, 0, len(extended))
	for k := range extended {
		ext = append(ext, k)
	}
	sort.Strings(ext)
	return append(keys, ext...)
}

func genotypeField(g *variant.Genotype, key string, siteAlleles []variant.Allele) string {
	switch key {
	case bcf2.GenotypeKey:
		return g.GenotypeString(siteAlleles)
	case bcf2.GenotypeQualKey:
		if !g.HasGQ() {
			return "."
		}
		return strconv.Itoa(g.GQ())
	case bcf2.DepthKey:
		if !g.HasDP() {
			return "."
		}
		return strconv.Itoa(g.DP())
	case bcf2.AlleleDepthsKey:
		return formatInts(g.AD())
	case bcf2.PLKey:
		return formatInts(g.PL())
	case bcf2.GenotypeFilterKey:
		if g.Filters() == "" {
			return "."
		}
		return g.Filters()
	}
	v, ok := g.Attribute(key)
	if !ok {
		return "."
	}
	return FormatValue(v)
}

// Flush flushes any buffered data to the underlying writer.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}
