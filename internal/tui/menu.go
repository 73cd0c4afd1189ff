package tui

import (
	"errors"
	"io"
	"strings"
	"sync"

	"eldersvr-cli/internal/util"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned when the user backs out of a menu with esc/q
// instead of picking an entry.
var ErrCancelled = errors.New("menu cancelled")

type menuItem string

func (m menuItem) Title() string       { return string(m) }
func (m menuItem) Description() string { return "" }
func (m menuItem) FilterValue() string { return string(m) }

// compactDelegate renders one item per line so the whole command menu fits
// on screen without paging.
type compactDelegate struct{ list.DefaultDelegate }

func (d compactDelegate) Height() int  { return 1 }
func (d compactDelegate) Spacing() int { return 0 }

func (d compactDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	it, ok := listItem.(menuItem)
	if !ok {
		return
	}
	if index == m.Index() {
		_, _ = io.WriteString(w, d.Styles.SelectedTitle.Render("> "+it.Title()))
		return
	}
	_, _ = io.WriteString(w, d.Styles.NormalTitle.Render("  "+it.Title()))
}

const logTail = 8

type menuModel struct {
	list     list.Model
	choice   string
	aborted  bool
	logMu    sync.Mutex
	logLines []string
}

func newMenu(items []string, title string) *menuModel {
	lItems := make([]list.Item, 0, len(items))
	for _, it := range items {
		lItems = append(lItems, menuItem(it))
	}

	delegate := compactDelegate{list.NewDefaultDelegate()}
	delegate.Styles.SelectedTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff79c6")).Bold(true)
	delegate.Styles.SelectedDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("#8be9fd"))
	delegate.Styles.NormalTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f8f8f2"))
	delegate.Styles.NormalDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))

	l := list.New(lItems, delegate, 44, 2+len(lItems))
	l.Title = title
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)

	return &menuModel{list: l}
}

// printMsg carries one sanitized console line into the update loop.
type printMsg string

func (m *menuModel) Init() tea.Cmd { return nil }

func (m *menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case printMsg:
		m.logMu.Lock()
		m.logLines = append(m.logLines, string(msg))
		if len(m.logLines) > 200 {
			m.logLines = m.logLines[len(m.logLines)-200:]
		}
		m.logMu.Unlock()
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if itm := m.list.SelectedItem(); itm != nil {
				m.choice = itm.(menuItem).Title()
			}
			return m, tea.Quit
		case "esc", "q", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		case "up", "k":
			m.list.CursorUp()
			return m, nil
		case "down", "j":
			m.list.CursorDown()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *menuModel) View() string {
	if m.choice != "" || m.aborted {
		return ""
	}
	view := m.list.View()

	m.logMu.Lock()
	defer m.logMu.Unlock()
	if len(m.logLines) == 0 {
		return view
	}
	start := 0
	if len(m.logLines) > logTail {
		start = len(m.logLines) - logTail
	}
	var b strings.Builder
	b.WriteString(view)
	b.WriteString("\n--- recent ---\n")
	for _, l := range m.logLines[start:] {
		b.WriteString(l)
		if !strings.HasSuffix(l, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ShowMenu blocks until the user picks an entry. Returns ErrCancelled when
// the menu is dismissed without a choice.
func ShowMenu(items []string, title string) (string, error) {
	m := newMenu(items, title)

	util.TUIActive = true
	_, err := tea.NewProgram(m).Run()
	util.TUIActive = false
	if err != nil {
		return "", err
	}
	if m.aborted {
		return "", ErrCancelled
	}
	return m.choice, nil
}

// ShowMenuWithLogs runs the menu while subscribed to util.PrintChan, so
// console output from background goroutines lands in the log area under the
// menu instead of corrupting the screen. The previous print channel is
// restored on exit.
func ShowMenuWithLogs(items []string, title string) (string, error) {
	ch := make(chan string, 256)
	prev := util.PrintChan
	util.SetPrintChannel(ch)

	m := newMenu(items, title)
	p := tea.NewProgram(m)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range ch {
			for _, line := range splitPrinted(s) {
				p.Send(printMsg(line))
			}
		}
	}()

	util.TUIActive = true
	_, err := p.Run()
	util.TUIActive = false

	util.SetPrintChannel(prev)
	close(ch)
	<-done

	if err != nil {
		return "", err
	}
	if m.aborted {
		return "", ErrCancelled
	}
	return m.choice, nil
}

// splitPrinted strips the cursor-control sequences SafePrinter emits and
// breaks multi-line blocks into trimmed lines for the log area.
func splitPrinted(s string) []string {
	s = strings.ReplaceAll(s, "\r\x1b[K", "")
	s = strings.ReplaceAll(s, "\x1b[2J\x1b[H", "")

	var out []string
	for _, part := range strings.Split(s, "\n") {
		line := strings.TrimSpace(part)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
