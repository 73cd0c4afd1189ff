package tui

import (
	"fmt"
	"strings"
	"time"

	"eldersvr-cli/internal/progress"
	"eldersvr-cli/internal/util"

	uiprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	dashTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff79c6")).Bold(true)
	dashLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))
	dashValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f8f8f2"))
	dashFailedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555"))
)

type dashTickMsg time.Time

func dashTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}

// downloadModel polls the shared download counters a few times per second
// and renders a one-screen dashboard. The worker pool keeps running in its
// own goroutines; this model only reads snapshots.
type downloadModel struct {
	stats   *progress.DownloadStats
	bar     uiprogress.Model
	spin    spinner.Model
	snap    progress.DownloadSnapshot
	aborted bool
}

func newDownloadModel(stats *progress.DownloadStats) downloadModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#8be9fd"))

	bar := uiprogress.New(uiprogress.WithDefaultGradient())
	bar.Width = 40

	return downloadModel{
		stats: stats,
		bar:   bar,
		spin:  sp,
		snap:  stats.Snapshot(),
	}
}

func (m downloadModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, dashTick())
}

func (m downloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashTickMsg:
		m.snap = m.stats.Snapshot()
		if m.stats.Done() {
			return m, tea.Quit
		}
		return m, dashTick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.aborted = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m downloadModel) View() string {
	s := m.snap

	pct := 0.0
	if s.Total > 0 {
		pct = float64(s.Completed) / float64(s.Total)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s\n\n", m.spin.View(), dashTitleStyle.Render("Downloading assets")))
	b.WriteString("  " + m.bar.ViewAs(pct) + "\n\n")
	b.WriteString(fmt.Sprintf("  %s %s\n",
		dashLabelStyle.Render("Files:"),
		dashValueStyle.Render(fmt.Sprintf("%d/%d", s.Completed, s.Total))))
	b.WriteString(fmt.Sprintf("  %s %s\n",
		dashLabelStyle.Render("Videos:"),
		dashValueStyle.Render(fmt.Sprintf("%d high, %d low", s.VideosHigh, s.VideosLow))))
	b.WriteString(fmt.Sprintf("  %s %s\n",
		dashLabelStyle.Render("Images:"),
		dashValueStyle.Render(fmt.Sprintf("%d thumbnails, %d tag images", s.Thumbnails, s.TagImages))))
	b.WriteString(fmt.Sprintf("  %s %s\n",
		dashLabelStyle.Render("Data:"),
		dashValueStyle.Render(fmt.Sprintf("%s at %s/s", humanize.Bytes(uint64(s.Bytes)), humanize.Bytes(uint64(s.Rate))))))

	if s.Skipped > 0 {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			dashLabelStyle.Render("Cached:"),
			dashValueStyle.Render(fmt.Sprintf("%d already on disk", s.Skipped))))
	}
	if s.Failed > 0 {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			dashLabelStyle.Render("Failed:"),
			dashFailedStyle.Render(fmt.Sprintf("%d", s.Failed))))
	}

	b.WriteString(fmt.Sprintf("\n  %s %s\n",
		dashLabelStyle.Render("Elapsed:"),
		dashValueStyle.Render(s.Elapsed.Round(time.Second).String())))
	if s.Completed > 0 && s.Completed < s.Total {
		eta := time.Duration(float64(s.Elapsed) / float64(s.Completed) * float64(s.Total-s.Completed))
		b.WriteString(fmt.Sprintf("  %s %s\n",
			dashLabelStyle.Render("ETA:"),
			dashValueStyle.Render(eta.Round(time.Second).String())))
	}
	b.WriteString(dashLabelStyle.Render("\n  press q to drop to plain output\n"))
	return b.String()
}

// RunDownloadDashboard renders the live dashboard until every download task
// reached a terminal state or the user dismissed the screen. Dismissing does
// not stop the downloads; the caller keeps waiting on the engine. Console
// printing is suspended while the dashboard owns the screen.
func RunDownloadDashboard(stats *progress.DownloadStats) error {
	m := newDownloadModel(stats)

	util.Default.Suspend()
	util.TUIActive = true
	out, err := tea.NewProgram(m).Run()
	util.TUIActive = false
	util.Default.Resume()
	if err != nil {
		return err
	}
	if final, ok := out.(downloadModel); ok && final.aborted {
		util.Default.Println("👀 Dashboard closed, downloads continue in the background...")
	}
	return nil
}
