package cmd

import (
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/voicerec/internal/server"
	"github.com/audiolibrelab/voicerec/internal/service"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server for remote control",
	Long: `Start the VoiceRec web server to control recording via a web interface.
This allows you to control recording from your smartphone or any device on the same network.

Every control is a POST route (/start, /pause, /resume, /stop-temporary, /stop,
/play, /delete, /restart, /record-again). GET /status and the /ws websocket
report the recorder state and waveform.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		// The web UI starts recordings explicitly.
		autoStart, _ := cmd.Flags().GetBool("auto-start")
		cfg.Recorder.AutoStart = &autoStart

		svc, err := service.New(cfg, cfgFile, captureLogWriter())
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		srv := server.New(svc, port)
		slog.Info("VoiceRec web server starting", "port", port, "config", cfgFile, "profile", cfg.Profile)

		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "8080", "port for the web server")
	serveCmd.Flags().Bool("auto-start", false, "start recording as soon as the server is up")
}
