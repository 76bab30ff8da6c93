package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/broadinstitute/picard-sub013/internal/bcf2"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>...",
		Short: "Report whether files are decodable BCF2",
		Long: `Check each file's signature without reading its header. Exits with status 1
if any file is not a decodable BCF2 file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bad := 0
			for _, path := range args {
				v, ok := bcf2.ProbeFile(path)
				switch {
				case ok:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", path, v)
				case v.Major != 0:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tunsupported %s\n", path, v)
					bad++
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tnot BCF2\n", path)
					bad++
				}
			}
			if bad > 0 {
				return fmt.Errorf("%d of %d files are not decodable BCF2", bad, len(args))
			}
			return nil
		},
	}
}
