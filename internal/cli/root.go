package cli

import (
	"github.com/spf13/cobra"

	"vidscribe/internal/logging"
)

var (
	verbose bool
	logger  *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vidscribe",
	Short: "Chunked AI transcription for video files",
	Long: `Vidscribe turns a video file into a time-aligned transcript while
keeping memory bounded: audio is extracted and transcribed one short
chunk at a time, never holding the video or its decoded audio in memory.

With a query, transcript segments are additionally classified into
problem and solution statements.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.NewLogger(verbose)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path")
}
