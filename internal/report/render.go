// Package report renders derive, analyze and profile results as console text
// or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	ruleWidth  = 80
	narrowRule = 60
)

// WriteJSON encodes v to w, indented.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// section writes a banner heading.
func section(b *strings.Builder, width int, title string) {
	rule := strings.Repeat("=", width)
	fmt.Fprintf(b, "\n%s\n%s\n%s\n", rule, title, rule)
}

func comma(n int64) string {
	return humanize.Comma(n)
}

func commaFloat(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

// orNA formats v, or "n/a" when ok is false.
func orNA(format string, v float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf(format, v)
}
