package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Output writes either aligned text or indented JSON to the command's stdout.
type Output struct {
	writer   io.Writer
	jsonMode bool
}

// NewOutput reads the --json flag off cmd.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{writer: cmd.OutOrStdout(), jsonMode: jsonMode}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Row prints a left-aligned label and value.
func (o *Output) Row(label string, format string, args ...interface{}) {
	fmt.Fprintf(o.writer, "%-16s %s\n", label+":", fmt.Sprintf(format, args...))
}
