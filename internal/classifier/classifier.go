// Package classifier decides whether a decoded frame shows the marker card: a
// near-monochrome image made of black, white, and grey pixels with a small
// tolerance for compression noise.
package classifier

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder for cached jpg frames
	_ "image/png"  // register decoder for cached png frames
	"log/slog"
	"os"

	"markercut/internal/logging"
	"markercut/internal/services"
)

// Options holds the pixel thresholds. Channel values are 8-bit.
type Options struct {
	// BlackBelow marks a pixel black when every channel is strictly below it.
	BlackBelow uint8
	// WhiteAbove marks a pixel white when every channel is strictly above it.
	WhiteAbove uint8
	// NoisyPercent is the share of pixels allowed to be neither black,
	// white, nor grey. The limit is total*NoisyPercent/100 in integer math.
	NoisyPercent int
}

// DefaultOptions returns the thresholds tuned for the marker card.
func DefaultOptions() Options {
	return Options{BlackBelow: 20, WhiteAbove: 220, NoisyPercent: 1}
}

// IsMarker reports whether img looks like the marker card. It rejects as soon
// as the noisy pixel count exceeds the allowance and requires at least one
// pixel that is not black.
func IsMarker(img image.Image, opts Options) bool {
	ok, _ := inspect(img, opts)
	return ok
}

// inspect returns the verdict plus the number of noisy pixels seen before it
// was reached.
func inspect(img image.Image, opts Options) (bool, int) {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total <= 0 {
		return false, 0
	}
	limit := total * opts.NoisyPercent / 100

	noisy := 0
	lit := false
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			r, g, b := uint8(r16>>8), uint8(g16>>8), uint8(b16>>8)

			black := r < opts.BlackBelow && g < opts.BlackBelow && b < opts.BlackBelow
			if !black {
				lit = true
			}
			if black {
				continue
			}
			white := r > opts.WhiteAbove && g > opts.WhiteAbove && b > opts.WhiteAbove
			grey := r == g && g == b
			if white || grey {
				continue
			}
			noisy++
			if noisy > limit {
				return false, noisy
			}
		}
	}
	return lit, noisy
}

// FileClassifier decodes cached frame images and applies IsMarker.
type FileClassifier struct {
	opts   Options
	logger *slog.Logger
}

// NewFileClassifier constructs a classifier; a nil logger discards debug output.
func NewFileClassifier(opts Options, logger *slog.Logger) *FileClassifier {
	return &FileClassifier{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "classifier"),
	}
}

// Classify decodes the image at path. Decode and open failures carry ErrIO.
func (c *FileClassifier) Classify(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	file, err := os.Open(path)
	if err != nil {
		return false, services.Wrap(services.ErrIO, "classify", "open frame", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return false, services.Wrap(services.ErrIO, "classify", "decode frame", path, err)
	}
	ok, noisy := inspect(img, c.opts)
	if !ok && c.logger.Enabled(ctx, slog.LevelDebug) {
		c.logger.DebugContext(ctx, "frame rejected",
			logging.String("path", path),
			logging.Int("noisy_pixels", noisy),
			logging.String("bounds", fmt.Sprint(img.Bounds().Size())),
		)
	}
	return ok, nil
}
