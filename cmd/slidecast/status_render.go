package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"slidecast/internal/plan"
	"slidecast/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func severityKind(s plan.Severity) statusKind {
	switch s {
	case plan.SeverityError:
		return statusError
	case plan.SeverityWarning:
		return statusWarn
	default:
		return statusInfo
	}
}

func problemLabel(p plan.Problem) string {
	if p.Page == plan.GlobalPage {
		return "plan"
	}
	return fmt.Sprintf("page %d", p.Page+1)
}

func printProblems(out io.Writer, problems []plan.Problem, colorize bool) {
	for _, p := range problems {
		fmt.Fprintln(out, renderStatusLine(problemLabel(p), severityKind(p.Severity), p.Message, colorize))
	}
}

func printPreflight(out io.Writer, results []preflight.Result, colorize bool) {
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func shouldColorize(writer io.Writer) bool {
	return isTerminal(writer) && os.Getenv("NO_COLOR") == ""
}
