package runbook

import (
	"fmt"
	"strings"
	"time"
)

// Markdown renders the report for operators.
func (r *Report) Markdown() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Valhalla Go-Live Runbook\n\nGenerated: `%s`\n\n", r.GeneratedAt.Format(time.RFC3339))

	verdict := "NOT OK to enable go-live"
	if r.OKToEnableGoLive {
		verdict = "OK to enable go-live"
	}
	fmt.Fprintf(&sb, "**%s**\n\n", verdict)

	writeSection(&sb, "Blockers", r.Blockers, true)
	writeSection(&sb, "Warnings", r.Warnings, true)
	writeSection(&sb, "Info / Passing Checks", r.Info, false)

	return sb.String()
}

func writeSection(sb *strings.Builder, title string, items []Item, noneLine bool) {
	fmt.Fprintf(sb, "## %s\n\n", title)
	if len(items) == 0 && noneLine {
		sb.WriteString("- ✅ None\n")
	}
	for _, it := range items {
		icon := "❌"
		if it.OK {
			icon = "✅"
		}
		fmt.Fprintf(sb, "- %s **%s**: %s\n", icon, it.ID, it.Message)
	}
	sb.WriteString("\n")
}
