package cmd

import (
	"fmt"
	"runtime"

	"github.com/audiolibrelab/voicerec/internal/audio"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available capture sources",
	Long: `List the capture inputs known to the configured ffmpeg input format
(pulse or alsa). The value to put in capture.device is the first column.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("🎙  Capture sources (%s)\n", runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")

		backends := audio.GetAvailableBackends()
		fmt.Printf("Available backends: %v\n", backends)
		fmt.Printf("Configured: backend=%s input_format=%s device=%s\n\n",
			cfg.Capture.Backend, cfg.Capture.InputFormat, cfg.Capture.Device)

		sources, err := audio.ListSources(cfg)
		if err != nil {
			return fmt.Errorf("failed to list sources: %w", err)
		}

		fmt.Printf("📋 SOURCES (%d found):\n", len(sources))
		for i, source := range sources {
			if source.Description != "" {
				fmt.Printf("  %d. %s  (%s)\n", i+1, source.Name, source.Description)
			} else {
				fmt.Printf("  %d. %s\n", i+1, source.Name)
			}
		}
		return nil
	},
}
