package gotest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"
)

// Executor runs the go command and hands its standard output to consume.
type Executor interface {
	Exec(ctx context.Context, dir string, args []string, consume func(io.Reader) error) error
}

// ExecExecutor runs a real go binary.
type ExecExecutor struct {
	GoBinary string    // "go" when empty
	Env      []string  // appended to the current environment
	Stderr   io.Writer // os.Stderr when nil
	Logger   *log.Logger
}

// Exec runs go with args in dir. A non-zero exit status is not an error:
// go test exits 1 whenever a test fails, and the event stream already says so.
func (e *ExecExecutor) Exec(ctx context.Context, dir string, args []string, consume func(io.Reader) error) error {
	bin := e.GoBinary
	if bin == "" {
		bin = "go"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), e.Env...)
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open go output: %w", err)
	}
	if e.Logger != nil {
		e.Logger.Debug("exec", "cmd", cmd.String(), "dir", dir)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", bin, err)
	}

	if err := consume(stdout); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return err
	}
	// drain what the consumer left so Wait does not block on a full pipe
	_, _ = io.Copy(io.Discard, stdout)

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			if e.Logger != nil {
				e.Logger.Debug("go exited", "code", exitErr.ExitCode())
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", bin, err)
	}
	return nil
}
