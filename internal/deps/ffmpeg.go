package deps

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var commandOutput = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Feature is an ffmpeg filter or encoder markercut relies on.
type Feature struct {
	// Kind is "filter" or "encoder".
	Kind        string
	Name        string
	Description string
	Optional    bool
}

// CheckFFmpegFeatures lists the binary's filters and encoders once and reports
// whether each feature is compiled in. The subtitles filter needs libass and
// h264_nvenc needs an NVENC-enabled build.
func CheckFFmpegFeatures(ctx context.Context, binary string, features []Feature) []Status {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	lists := map[string]map[string]bool{}
	errs := map[string]error{}
	for _, kind := range []string{"filter", "encoder"} {
		out, err := commandOutput(ctx, binary, "-hide_banner", "-"+kind+"s")
		if err != nil {
			errs[kind] = err
			continue
		}
		lists[kind] = parseFeatureList(string(out))
	}

	results := make([]Status, 0, len(features))
	for _, feature := range features {
		status := Status{
			Name:        feature.Name,
			Command:     fmt.Sprintf("%s -%ss", binary, feature.Kind),
			Description: feature.Description,
			Optional:    feature.Optional,
		}
		switch {
		case errs[feature.Kind] != nil:
			status.Detail = fmt.Sprintf("list %ss: %v", feature.Kind, errs[feature.Kind])
		case lists[feature.Kind][feature.Name]:
			status.Available = true
		default:
			status.Detail = fmt.Sprintf("%s %q not compiled into %s", feature.Kind, feature.Name, binary)
		}
		results = append(results, status)
	}
	return results
}

// parseFeatureList extracts names from `ffmpeg -filters` / `-encoders` output.
// Entry lines start with a flag column followed by the name; the legend above
// the separator line is skipped.
func parseFeatureList(output string) map[string]bool {
	names := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(output))
	started := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !started {
			if strings.HasPrefix(line, "---") {
				started = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			names[fields[1]] = true
		}
	}
	return names
}
