package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/broadinstitute/picard-sub013/internal/bcf2"
)

func newHeaderCmd() *cobra.Command {
	var dictionary bool

	cmd := &cobra.Command{
		Use:   "header [flags] <file.bcf>",
		Short: "Print the embedded VCF header",
		Example: `  bcf2view header calls.bcf
  bcf2view header --dictionary calls.bcf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			rd, err := bcf2.Open(args[0], readerOptions(cfg, logger, bcf2.WithSitesOnly())...)
			if err != nil {
				return err
			}
			defer rd.Close()

			if dictionary {
				return printDictionary(cmd.OutOrStdout(), rd)
			}
			for _, line := range rd.Header().Text() {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dictionary, "dictionary", false, "Print the string dictionary and contig table instead")
	return cmd
}

// printDictionary prints the offset tables records refer to.
func printDictionary(w io.Writer, rd *bcf2.Reader) error {
	fmt.Fprintf(w, "# %s, %d samples\n", rd.Version(), rd.Header().NumSamples())
	fmt.Fprintln(w, "#DICTIONARY")
	for i, s := range rd.Dictionary() {
		fmt.Fprintf(w, "%d\t%s\n", i, s)
	}
	fmt.Fprintln(w, "#CONTIGS")
	for i, s := range rd.Contigs() {
		fmt.Fprintf(w, "%d\t%s\n", i, s)
	}
	return nil
}
