package ffmpeg

import "strconv"

// Command accumulates ffmpeg arguments in order.
type Command struct {
	args []string
}

// NewCommand starts an overwrite-enabled command at the given log level.
// Use "error" for plain encodes and "info" when stderr carries filter output.
func NewCommand(logLevel string) *Command {
	if logLevel == "" {
		logLevel = "error"
	}
	return &Command{args: []string{"-hide_banner", "-nostdin", "-y", "-loglevel", logLevel}}
}

// Add appends raw arguments.
func (c *Command) Add(args ...string) *Command {
	c.args = append(c.args, args...)
	return c
}

// Input appends input options followed by -i path.
func (c *Command) Input(path string, opts ...string) *Command {
	c.args = append(c.args, opts...)
	c.args = append(c.args, "-i", path)
	return c
}

// Map appends a -map selector.
func (c *Command) Map(selector string) *Command {
	return c.Add("-map", selector)
}

// Duration appends -t with millisecond precision.
func (c *Command) Duration(seconds float64) *Command {
	return c.Add("-t", FormatSeconds(seconds))
}

// Output appends the output path and returns the finished argument list.
func (c *Command) Output(path string) []string {
	out := make([]string, 0, len(c.args)+1)
	out = append(out, c.args...)
	return append(out, path)
}

// FormatSeconds renders seconds with at most three decimals.
func FormatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
