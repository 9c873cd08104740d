package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcgurk",
	Short: "Audiovisual speech perception experiment with eye tracking",
	Long: `mcgurk plays dubbed syllable videos to a participant, records eye
movements around each video and collects the syllable the participant heard.

Configuration is read from --config, or mcgurk.yaml in the working directory,
and MCGURK_* environment variables (e.g. MCGURK_TRACKER_ADDRESS).`,
	SilenceUsage: true,
}

func init() {
	// SDL must stay on the main thread.
	runtime.LockOSThread()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./mcgurk.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(simhostCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
