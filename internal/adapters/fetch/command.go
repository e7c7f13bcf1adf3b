package fetch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/okian/standings/pkg/logger"
)

const defaultWaitDelay = time.Second

// CommandFetcher runs an external CLI and returns its stdout.
type CommandFetcher struct {
	command string
	args    []string
	log     logger.Logger
}

// CommandOption configures a CommandFetcher.
type CommandOption func(*CommandFetcher)

// WithCommandLogger sets the logger used for command tracing.
func WithCommandLogger(l logger.Logger) CommandOption {
	return func(f *CommandFetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// NewCommandFetcher builds a fetcher that runs command with args. Each
// argument may contain {competition} and {limit}.
func NewCommandFetcher(command string, args []string, opts ...CommandOption) *CommandFetcher {
	f := &CommandFetcher{
		command: command,
		args:    append([]string(nil), args...),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher.
func (f *CommandFetcher) Fetch(ctx context.Context, competition string, rowLimit int) (string, error) {
	args := make([]string, len(f.args))
	for i, a := range f.args {
		args[i] = expand(a, competition, rowLimit)
	}

	cmd := exec.CommandContext(ctx, f.command, args...)
	cmd.WaitDelay = defaultWaitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.log.Debug(ctx, "running fetch command",
		logger.String("competition", competition),
		logger.String("command", f.command),
		logger.Any("args", args))

	if err := cmd.Run(); err != nil {
		cause := err
		if ctxErr := ctx.Err(); ctxErr != nil {
			cause = fmt.Errorf("%w (%w)", ctxErr, err)
		}
		return "", &FetchError{Competition: competition, Stderr: tail(stderr.String()), Err: cause}
	}
	return stdout.String(), nil
}
