package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// Render writes a plain-text dashboard for terminal observers.
func Render(w io.Writer, st State) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Total %s | High %s | Medium %s | Low %s",
		humanize.Comma(int64(st.Summary.Total)),
		humanize.Comma(int64(st.Summary.High)),
		humanize.Comma(int64(st.Summary.Medium)),
		humanize.Comma(int64(st.Summary.Low)),
	)
	if !st.FetchedAt.IsZero() {
		fmt.Fprintf(&b, " | updated %s", humanize.Time(st.FetchedAt))
	}
	b.WriteString("\n")

	if st.Banner {
		fmt.Fprintf(&b, "🔴 %s\n", highSeverityBanner)
	}

	fmt.Fprintf(&b, "Map: %d of %d alerts placeable\n", len(st.Markers), st.Summary.Total)
	fmt.Fprintf(&b, "Live alerts (%s):\n", st.Filter)

	if len(st.Rows) == 0 {
		b.WriteString("  No alerts yet…\n")
	}
	for _, r := range st.Rows {
		fmt.Fprintf(&b, "  %s %-6s | %s | %s\n", r.Icon, r.Severity, r.Time, r.Location)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
