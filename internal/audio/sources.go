package audio

import (
	"bufio"
	"fmt"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/voicerec/internal/config"
)

// Source is a capture input usable as capture.device.
type Source struct {
	Name        string
	Description string
}

// ListSources returns the inputs known to the configured backend.
func ListSources(cfg *config.Config) ([]Source, error) {
	if determineBackend(cfg) == BackendTypeMock {
		return []Source{{Name: "synthetic", Description: "440 Hz test tone"}}, nil
	}

	switch cfg.Capture.InputFormat {
	case "pulse":
		output, err := exec.Command("pactl", "list", "short", "sources").Output()
		if err != nil {
			return nil, fmt.Errorf("failed to list PulseAudio sources: %w", err)
		}
		return parsePactlSources(string(output)), nil
	case "alsa":
		output, err := exec.Command("arecord", "-L").Output()
		if err != nil {
			return nil, fmt.Errorf("failed to list ALSA devices: %w", err)
		}
		return parseArecordList(string(output)), nil
	default:
		return nil, fmt.Errorf("listing sources is not supported for input format %q", cfg.Capture.InputFormat)
	}
}

// parsePactlSources parses `pactl list short sources`:
// index, name, driver, sample spec, state separated by tabs.
func parsePactlSources(output string) []Source {
	var sources []Source
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 2 || strings.TrimSpace(fields[1]) == "" {
			continue
		}
		src := Source{Name: strings.TrimSpace(fields[1])}
		var desc []string
		if len(fields) >= 4 {
			desc = append(desc, strings.TrimSpace(fields[3]))
		}
		if len(fields) >= 5 {
			desc = append(desc, strings.TrimSpace(fields[4]))
		}
		if strings.HasSuffix(src.Name, ".monitor") {
			desc = append(desc, "monitor")
		}
		src.Description = strings.Join(desc, ", ")
		sources = append(sources, src)
	}
	return sources
}

// parseArecordList parses `arecord -L`: unindented lines name a device, the
// indented lines below describe it.
func parseArecordList(output string) []Source {
	var sources []Source
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if len(sources) == 0 {
				continue
			}
			last := &sources[len(sources)-1]
			text := strings.TrimSpace(line)
			if last.Description == "" {
				last.Description = text
			} else {
				last.Description += ", " + text
			}
			continue
		}
		sources = append(sources, Source{Name: strings.TrimSpace(line)})
	}

	// null discards everything it is given.
	filtered := sources[:0]
	for _, s := range sources {
		if s.Name != "null" {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
