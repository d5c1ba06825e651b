package viewer

import (
	"context"
	"os/exec"
	"runtime"
	"strings"

	"emgreach/internal"
	apperrors "emgreach/internal/errors"
	"emgreach/ports"
)

var _ ports.ViewerPort = (*Opener)(nil)

// CommandRunner starts an external program without waiting for it to exit.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// StartCommand runs name through os/exec and returns once it has started.
func StartCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Start()
}

// Opener hands a saved export to the desktop's default application.
type Opener struct {
	goos   string
	run    CommandRunner
	logger *internal.Logger
}

// NewOpener creates an opener for the running platform. run may be nil.
func NewOpener(run CommandRunner, logger *internal.Logger) *Opener {
	if run == nil {
		run = StartCommand
	}
	return &Opener{goos: runtime.GOOS, run: run, logger: internal.OrDefault(logger).With("opener")}
}

// OpenCommand returns the program and arguments that open location on goos.
func OpenCommand(goos, location string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{location}
	case "windows":
		return "cmd", []string{"/c", "start", "", location}
	default:
		return "xdg-open", []string{location}
	}
}

// Open launches the platform viewer. Locations that are not files, such as
// database rows, are skipped.
func (o *Opener) Open(ctx context.Context, location string) error {
	if location == "" || strings.Contains(location, "://") {
		o.logger.Debug("nothing to open for %q", location)
		return nil
	}
	name, args := OpenCommand(o.goos, location)
	o.logger.Info("opening %s", location)
	if err := o.run(ctx, name, args...); err != nil {
		return apperrors.Wrapf(err, "open %s with %s", location, name)
	}
	return nil
}
