package encoders

import (
	"bufio"
	"regexp"
	"strings"
)

var encoderLine = regexp.MustCompile(`^\s*([VAS.][.FXBDI-]{5})\s+(\S+)`)

// parseEncoderList returns video encoder names in the order ffmpeg reports
// them in `ffmpeg -hide_banner -encoders`.
func parseEncoderList(output string) []string {
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	pastHeader := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "------" {
			pastHeader = true
			continue
		}
		if !pastHeader {
			continue
		}
		match := encoderLine.FindStringSubmatch(line)
		if match == nil || match[1][0] != 'V' {
			continue
		}
		names = append(names, match[2])
	}
	return names
}
