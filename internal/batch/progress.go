package batch

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

type progress interface {
	Add(n int) error
	Describe(description string)
	Finish() error
}

type nopProgress struct{}

func (nopProgress) Add(int) error   { return nil }
func (nopProgress) Describe(string) {}
func (nopProgress) Finish() error   { return nil }

// newProgress draws a bar only when w is an interactive terminal; logs carry
// the same information otherwise.
func newProgress(w io.Writer, total int, label string) progress {
	file, ok := w.(*os.File)
	if !ok || file == nil || total <= 0 {
		return nopProgress{}
	}
	fd := file.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nopProgress{}
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(file),
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}
