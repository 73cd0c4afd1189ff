package tui

import (
	"fmt"
	"strings"

	"eldersvr-cli/internal/progress"

	"github.com/charmbracelet/lipgloss"
)

var (
	tableHeadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8be9fd")).Bold(true)
	tableDimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))
)

func classCell(c progress.ClassProgress) string {
	switch c.Status {
	case progress.StatusCompleted:
		return fmt.Sprintf("✅ %d/%d", c.Current, c.Total)
	case progress.StatusFailed:
		return fmt.Sprintf("❌ %d/%d", c.Current, c.Total)
	case progress.StatusInProgress:
		return fmt.Sprintf("🔄 %d/%d", c.Current, c.Total)
	default:
		return tableDimStyle.Render("⏳ pending")
	}
}

// RenderTransferTable formats the per-device transfer state as a fixed-width
// table. It is printed between devices and as the final summary; emoji cells
// keep it readable on the small provisioning laptop screens.
func RenderTransferTable(rows []progress.DeviceSnapshot) string {
	if len(rows) == 0 {
		return tableDimStyle.Render("no devices selected") + "\n"
	}

	var b strings.Builder
	b.WriteString(tableHeadStyle.Render(fmt.Sprintf("%-18s %-14s %-12s %-12s %-12s", "DEVICE", "SERIAL", "JSON", "VIDEOS", "IMAGES")))
	b.WriteString("\n")
	for _, row := range rows {
		name := row.Name
		if len(name) > 17 {
			name = name[:17]
		}
		serial := row.Serial
		if len(serial) > 13 {
			serial = serial[:13]
		}
		b.WriteString(fmt.Sprintf("%-18s %-14s %-12s %-12s %-12s\n",
			name, serial, classCell(row.JSON), classCell(row.Videos), classCell(row.Images)))
	}
	return b.String()
}
