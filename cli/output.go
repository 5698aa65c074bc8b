package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// output writes command results as text or JSON.
type output struct {
	format string
	w      io.Writer
	errW   io.Writer
}

func newOutput(opts *RootOptions, cmd *cobra.Command) *output {
	return &output{format: opts.Format, w: cmd.OutOrStdout(), errW: cmd.ErrOrStderr()}
}

func (o *output) isJSON() bool { return o.format == "json" }

// print writes v as JSON, or the formatted text otherwise.
func (o *output) print(v any, format string, args ...any) error {
	if o.isJSON() {
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintf(o.w, format, args...)
	return err
}

func (o *output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}

func (o *output) errorf(format string, args ...any) {
	fmt.Fprintf(o.errW, format, args...)
}
