package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"slidecast/internal/logging"
	"slidecast/internal/services"
)

const (
	stderrTailBytes = 16 * 1024
	killWaitDelay   = 5 * time.Second
)

// Invocation is one ffmpeg (or ffprobe-like) process run.
type Invocation struct {
	// Label names the invocation in logs and errors, e.g. "segment 3".
	Label string
	Args  []string
	// Output is the file the invocation must produce. Empty for null-muxer
	// runs such as loudness analysis or first encode passes.
	Output  string
	Timeout time.Duration
	// TotalSeconds enables progress reporting against the expected duration.
	TotalSeconds float64
	Progress     func(fraction float64)
}

// Result describes how an invocation ended.
type Result struct {
	Label    string
	Args     []string
	ExitCode int
	// Stderr holds the trailing diagnostic text ffmpeg printed.
	Stderr string
	// Output is the produced artifact; empty when it is missing or zero bytes.
	Output    string
	TimedOut  bool
	Cancelled bool
	// MissingOutput is set when the process exited 0 without producing Output.
	MissingOutput bool
	StartErr      error
	Elapsed       time.Duration
}

// OK reports whether the process exited cleanly and produced its output.
func (r Result) OK() bool {
	return r.StartErr == nil && !r.TimedOut && !r.Cancelled && !r.MissingOutput && r.ExitCode == 0
}

// Err converts a failed result into an error classified with a services
// sentinel. It returns nil for successful results.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &RunError{Result: r}
}

// RunError wraps a failed Result.
type RunError struct {
	Result Result
}

func (e *RunError) Error() string {
	r := e.Result
	var reason string
	switch {
	case r.StartErr != nil:
		reason = fmt.Sprintf("could not start: %v", r.StartErr)
	case r.Cancelled:
		reason = "cancelled"
	case r.TimedOut:
		reason = fmt.Sprintf("timed out after %s", r.Elapsed.Round(time.Second))
	case r.ExitCode != 0:
		reason = fmt.Sprintf("exit status %d", r.ExitCode)
	default:
		reason = "produced no output"
	}
	if tail := LastLines(r.Stderr, 3); tail != "" {
		return fmt.Sprintf("%s %s: %s", r.Label, reason, tail)
	}
	return fmt.Sprintf("%s %s", r.Label, reason)
}

// Unwrap classifies the failure.
func (e *RunError) Unwrap() error {
	switch {
	case e.Result.Cancelled:
		return services.ErrCancelled
	case e.Result.TimedOut:
		return services.ErrTimeout
	default:
		return services.ErrExternalTool
	}
}

// Runner executes invocations against one binary.
type Runner struct {
	Binary string
	Logger *slog.Logger
}

// NewRunner returns a Runner for binary (defaults to "ffmpeg").
func NewRunner(binary string, logger *slog.Logger) *Runner {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{Binary: binary, Logger: logger}
}

// Run executes inv and waits for it. Cancellation of ctx and the invocation
// timeout both kill the process group.
func (r *Runner) Run(ctx context.Context, inv Invocation) Result {
	result := Result{Label: inv.Label, Args: inv.Args, ExitCode: -1}
	if result.Label == "" {
		result.Label = "ffmpeg"
	}
	if err := ctx.Err(); err != nil {
		result.Cancelled = true
		return result
	}

	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	args := inv.Args
	if inv.Progress != nil && inv.TotalSeconds > 0 {
		args = append([]string{"-progress", "pipe:1", "-nostats"}, args...)
	}
	if inv.Output != "" {
		_ = os.Remove(inv.Output)
	}

	cmd := exec.CommandContext(runCtx, r.Binary, args...) //nolint:gosec
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = killWaitDelay
	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stderr = stderr

	var stdout io.ReadCloser
	if inv.Progress != nil && inv.TotalSeconds > 0 {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			result.StartErr = err
			return result
		}
		stdout = pipe
	}

	r.Logger.Debug("ffmpeg invocation",
		logging.String("label", result.Label),
		logging.String("command", r.Binary+" "+strings.Join(args, " ")))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		result.StartErr = err
		return result
	}
	if stdout != nil {
		readProgress(stdout, inv.TotalSeconds, inv.Progress)
	}
	waitErr := cmd.Wait()
	result.Elapsed = time.Since(start)
	result.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		result.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.StartErr = waitErr
	}
	if ctx.Err() != nil {
		result.Cancelled = true
	} else if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
	}

	if inv.Output != "" {
		if info, err := os.Stat(inv.Output); err == nil && info.Size() > 0 {
			result.Output = inv.Output
		} else if result.OK() {
			result.MissingOutput = true
		}
	}
	if !result.OK() && inv.Output != "" {
		_ = os.Remove(inv.Output)
		result.Output = ""
	}
	return result
}

// readProgress consumes ffmpeg -progress key=value lines until EOF.
func readProgress(r io.Reader, total float64, report func(float64)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// Both keys carry microseconds.
			us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil || us < 0 {
				continue
			}
			report(min(1, float64(us)/1e6/total))
		case "progress":
			if value == "end" {
				report(1)
			}
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

// Capture runs binary with args and returns its stdout. It is meant for short
// informational queries such as -version and -encoders.
func Capture(ctx context.Context, binary string, timeout time.Duration, args ...string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = killWaitDelay
	stderr := newTailBuffer(4096)
	cmd.Stderr = stderr
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s %s: %w", binary, strings.Join(args, " "), ctxErr)
		}
		return "", fmt.Errorf("%s %s: %w: %s", binary, strings.Join(args, " "), err, LastLines(stderr.String(), 2))
	}
	return string(out), nil
}
