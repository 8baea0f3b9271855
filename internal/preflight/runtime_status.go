package preflight

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"markercut/internal/config"
)

// ToolVersion is the first line a tool prints for its version flag.
type ToolVersion struct {
	Name    string `json:"name"`
	Command string `json:"command"`
	Version string `json:"version"`
}

var versionOutput = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ProbeToolVersions asks each configured tool for its version. Tools that are
// missing or fail report "unavailable".
func ProbeToolVersions(ctx context.Context, cfg *config.Config) []ToolVersion {
	tools := []struct {
		name, command, flag string
	}{
		{"FFmpeg", cfg.Tools.FFmpeg, "-version"},
		{"FFprobe", cfg.Tools.FFprobe, "-version"},
		{"Downloader", cfg.Tools.Downloader, "--version"},
	}
	versions := make([]ToolVersion, 0, len(tools))
	for _, tool := range tools {
		versions = append(versions, ToolVersion{
			Name:    tool.name,
			Command: tool.command,
			Version: probeVersion(ctx, tool.command, tool.flag),
		})
	}
	return versions
}

func probeVersion(ctx context.Context, command, flag string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return "unavailable"
	}
	if _, err := exec.LookPath(command); err != nil {
		return "unavailable"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	output, err := versionOutput(ctx, command, flag)
	if err != nil {
		return "unavailable"
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	if line = strings.TrimSpace(line); line == "" {
		return "unknown"
	}
	return line
}
