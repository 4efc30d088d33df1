package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

type Field struct {
	Name  string
	Value string
}

// WriteFields renders name/value pairs as an aligned two column list.
// Empty values are shown as "-".
func WriteFields(w io.Writer, fields []Field) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	for _, f := range fields {
		value := f.Value
		if value == "" {
			value = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", f.Name, value)
	}
	_ = tw.Flush()
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
