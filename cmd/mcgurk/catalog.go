package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mcgurk/catalog"
)

var catalogOut string

var catalogCmd = &cobra.Command{
	Use:   "catalog <video-dir>",
	Short: "Write a trial catalog for the videos in a directory",
	Long: `catalog lists the .mp4 files of a directory named after the
convention <phoneme>_<viseme>.mp4 and writes the trial catalog CSV.
Files that do not follow the convention are reported and left out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var w io.Writer = os.Stdout
		if catalogOut != "" {
			f, err := os.Create(catalogOut)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", catalogOut, err)
			}
			defer f.Close()
			w = f
		}

		n, skipped, err := catalog.Build(args[0], w)
		if err != nil {
			return err
		}
		for _, name := range skipped {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s, not <phoneme>_<viseme>.mp4\n", name)
		}
		if catalogOut != "" {
			fmt.Fprintf(os.Stderr, "Wrote %d trials to %s\n", n, catalogOut)
		}
		return nil
	},
}

func init() {
	catalogCmd.Flags().StringVarP(&catalogOut, "output", "o", "", "output file (default stdout)")
}
