package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON prints v for --json output. HTML escaping is off so chapter
// titles and file paths containing &, < or > come through verbatim.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
