package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/audiolibrelab/voicerec/internal/recorder"
	"github.com/audiolibrelab/voicerec/internal/service"
	"github.com/charmbracelet/x/term"

	"github.com/spf13/cobra"
)

const renderInterval = 100 * time.Millisecond

var keyCommands = map[byte]string{
	'p': "toggle-pause",
	't': "stop-temporary",
	's': "stop",
	' ': "play",
	'l': "play",
	'a': "record-again",
	'r': "restart",
	'd': "delete",
	'n': "start",
	'q': "quit",
	3:   "quit", // ctrl-c in raw mode
	4:   "quit", // ctrl-d
}

var commandFuncs = map[string]func(service.Service) error{
	"toggle-pause":   service.Service.TogglePause,
	"stop-temporary": service.Service.StopTemporary,
	"stop":           service.Service.Stop,
	"play":           service.Service.TogglePlay,
	"record-again":   service.Service.RecordAgain,
	"restart":        service.Service.Restart,
	"delete":         service.Service.Delete,
	"start":          service.Service.Start,
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from the microphone in the terminal",
	Long: `Record from the microphone with a live waveform in the terminal.

Single keys control the recorder while it runs:
  p      pause / resume
  t      stop temporarily to review, p resumes the same take
  s      finish the take (saved to output.directory)
  space  play / pause the take under review
  a      discard the take and record again
  r      restart from scratch
  d      delete everything
  n      start a new recording
  q      quit (a take in progress is finished first)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if noAutoStart, _ := cmd.Flags().GetBool("no-auto-start"); noAutoStart {
			off := false
			cfg.Recorder.AutoStart = &off
		}
		if dir, _ := cmd.Flags().GetString("output"); dir != "" {
			cfg.Output.Directory = dir
		}

		svc, err := service.New(cfg, cfgFile, captureLogWriter())
		if err != nil {
			return fmt.Errorf("failed to start recorder: %w", err)
		}
		defer svc.Close()

		return runSession(svc, os.Stdin, os.Stdout)
	},
}

func init() {
	recordCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
	recordCmd.Flags().Bool("no-auto-start", false, "wait for 'n' instead of recording immediately")
	rootCmd.Flags().AddFlagSet(recordCmd.Flags())
}

// runSession drives svc from single key presses on in and redraws the status
// line on out until quit.
func runSession(svc service.Service, in *os.File, out *os.File) error {
	interactive := term.IsTerminal(in.Fd())
	if interactive {
		state, err := term.MakeRaw(in.Fd())
		if err != nil {
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
		defer term.Restore(in.Fd(), state)

		// Raw mode drops the carriage return from newlines.
		prev := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(crlfWriter{os.Stderr}, &slog.HandlerOptions{
			Level: logLevel(),
		})))
		defer slog.SetDefault(prev)
	}

	fmt.Fprint(out, dimStyle.Render(helpText)+"\r\n")

	keys := readKeys(in)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

	width := func() int {
		cols, _, err := term.GetSize(out.Fd())
		if err != nil || cols <= 0 {
			cols = 80
		}
		return barCells(cols) * (cfg.Display.BarWidth + cfg.Gap())
	}
	render := func() {
		fmt.Fprint(out, "\r\x1b[K"+renderStatus(svc.Status(width())))
	}

	render()
	for {
		select {
		case <-sig:
			return finishSession(svc, out)
		case k, ok := <-keys:
			if !ok {
				return finishSession(svc, out)
			}
			if handleKey(svc, k) {
				return finishSession(svc, out)
			}
			render()
		case <-ticker.C:
			render()
		}
	}
}

// handleKey runs the command bound to k and reports whether k asks to quit.
func handleKey(svc service.Service, k byte) bool {
	name, ok := keyCommands[k]
	if !ok {
		return false
	}
	if name == "quit" {
		return true
	}
	if err := commandFuncs[name](svc); err != nil {
		slog.Debug("Command failed", "key", string(k), "command", name, "error", err)
	}
	return false
}

// finishSession commits a take in progress and reports where it went.
func finishSession(svc service.Service, out io.Writer) error {
	st := svc.Status(0)
	if st.State == "recording" || st.State == "paused" || st.Temporary {
		if err := svc.Stop(); err != nil && !errors.Is(err, recorder.ErrEmptyRecording) {
			fmt.Fprint(out, "\r\n")
			return fmt.Errorf("failed to finish recording: %w", err)
		}
		st = svc.Status(0)
	}
	fmt.Fprint(out, "\r\x1b[K"+renderStatus(st)+"\r\n")

	if a := st.Artifact; a != nil {
		if dir := svc.GetConfig().Output.Directory; dir != "" {
			fmt.Fprintf(out, "Saved %s (%s) to %s\r\n", a.Name, a.SizeHuman, dir)
		} else {
			fmt.Fprintf(out, "Recorded %s (%s), no output directory configured\r\n", a.Name, a.SizeHuman)
		}
	}
	if msg := svc.GetLastError(); msg != "" {
		fmt.Fprint(out, errorStyle.Render(msg)+"\r\n")
	}
	return nil
}

// readKeys delivers every byte read from in. The channel closes at EOF.
func readKeys(in io.Reader) <-chan byte {
	keys := make(chan byte)
	go func() {
		defer close(keys)
		buf := make([]byte, 64)
		for {
			n, err := in.Read(buf)
			for _, b := range buf[:n] {
				keys <- b
			}
			if err != nil {
				return
			}
		}
	}()
	return keys
}

type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(c.w, strings.ReplaceAll(string(p), "\n", "\r\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}

func logLevel() slog.Level {
	if verboseLevel >= 1 {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
