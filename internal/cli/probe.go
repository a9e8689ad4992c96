package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vidscribe/internal/media"
	"vidscribe/internal/transcript"
)

var probeCmd = &cobra.Command{
	Use:   "probe [media_file]",
	Short: "Print duration and format information for a media file",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	path := args[0]

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", path)
	}

	info, err := media.NewProber().Probe(context.Background(), path)
	if err != nil {
		return err
	}

	fmt.Printf("File:     %s\n", info.Path)
	fmt.Printf("Duration: %s (%s)\n", info.Duration.String(), transcript.FormatTimestamp(info.Duration))
	fmt.Printf("Format:   %s\n", info.FormatName)
	if info.Size > 0 {
		fmt.Printf("Size:     %d bytes\n", info.Size)
	}

	return nil
}
