package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/fpang/swipe-story/internal/cli"
	"github.com/fpang/swipe-story/internal/store"
	"github.com/fpang/swipe-story/internal/triage"
)

func (m *Model) View() string {
	var content string
	switch m.state {
	case StatePick:
		content = m.pickView()
	case StateLoading:
		content = m.loadingView()
	case StateTriaging:
		content = m.triagingView()
	case StateSummary:
		content = m.summaryView()
	case StateForm:
		content = m.form.GetForm().View()
	case StateGenerating:
		content = m.generatingView()
	case StateDone:
		content = m.doneView()
	default:
		return "Unknown state"
	}

	if m.width > 0 && m.height > 0 {
		content = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	return content
}

func (m *Model) pickView() string {
	content := m.styles.Border.Render(
		lipgloss.JoinVertical(lipgloss.Center,
			m.styles.Title.Render("Swipe Story"),
			m.styles.Normal.Render("No photo folder was given."),
			m.styles.Muted.Render("Press o to choose one."),
		),
	)
	return lipgloss.JoinVertical(lipgloss.Center, content, m.statusLine(), m.styles.Help.Render("o pick folder · q quit"))
}

func (m *Model) loadingView() string {
	status := fmt.Sprintf("%s Scanning %s...", m.spinner.View(), truncate(m.dir, 48))
	return m.styles.Border.Render(
		lipgloss.JoinVertical(lipgloss.Center,
			m.styles.Title.Render("Loading Photos"),
			m.styles.Normal.Render(status),
		),
	)
}

func (m *Model) triagingView() string {
	st := m.snap.Stats
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		m.styles.Title.Render("Swipe Story"),
		"  ",
		m.styles.Muted.Render(truncate(filepath.Base(m.dir), 32)),
	)

	percent := 0.0
	if m.snap.Total > 0 {
		percent = float64(m.snap.Cursor) / float64(m.snap.Total)
	}

	var cards []string
	for i, it := range m.snap.Upcoming {
		cards = append(cards, m.cardView(it, i == 0))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.styles.Normal.Render(cli.FormatProgress(st.Kept, st.Deleted, st.Remaining)),
		m.progress.ViewAs(percent),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, cards...),
		m.lastDecisionLine(),
		m.statusLine(),
		m.help.View(m.keys),
	)
}

func (m *Model) cardView(it triage.Item, current bool) string {
	taken := "no capture date"
	if !it.TakenAt.IsZero() {
		taken = it.TakenAt.Format("Jan 2, 2006 15:04")
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		truncate(it.Name, cardWidth-2),
		fmt.Sprintf("#%d of %d", it.ID+1, m.snap.Total),
		taken,
		formatSize(it.Size),
	)
	if current {
		return m.styles.CurrentCard.Render(body)
	}
	return m.styles.Card.Render(body)
}

func (m *Model) lastDecisionLine() string {
	d := m.snap.LastDecision
	if d == nil {
		return ""
	}
	if d.Tag == triage.Keep {
		return m.styles.Keep.Render("✓ kept " + truncate(d.Item.Name, 40))
	}
	return m.styles.Delete.Render("✗ deleted " + truncate(d.Item.Name, 40))
}

func (m *Model) summaryView() string {
	st := m.snap.Stats
	content := m.styles.Border.Render(
		lipgloss.JoinVertical(lipgloss.Center,
			m.styles.Success.Render("✓ All photos reviewed"),
			"",
			m.styles.Keep.Render(fmt.Sprintf("%d kept", st.Kept)),
			m.styles.Delete.Render(fmt.Sprintf("%d deleted", st.Deleted)),
			m.styles.Muted.Render(fmt.Sprintf("of %d photos", st.Total)),
		),
	)
	return lipgloss.JoinVertical(lipgloss.Center, content, m.statusLine(), m.help.View(summaryKeys{m.keys}))
}

func (m *Model) generatingView() string {
	lines := []string{m.styles.Title.Render("Making Your Story Video"), ""}
	if m.task == nil {
		lines = append(lines, fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Normal.Render(m.statusMessage)))
	} else {
		lines = append(lines,
			fmt.Sprintf("%s %s  %s", m.spinner.View(),
				m.styles.Normal.Render(m.task.Service+": "+m.task.Status),
				m.styles.Help.Render(fmt.Sprintf("%d%%", m.task.Progress))),
			"",
			m.progress.ViewAs(float64(m.task.Progress)/100),
		)
		if m.task.CreatedAt > 0 {
			elapsed := time.Since(time.Unix(m.task.CreatedAt, 0))
			lines = append(lines, m.styles.Muted.Render("elapsed "+cli.FormatDurationShort(elapsed)))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Center,
		m.styles.Border.Render(lipgloss.JoinVertical(lipgloss.Center, lines...)),
		m.styles.Help.Render("q quit"),
	)
}

func (m *Model) doneView() string {
	var lines []string
	switch m.task.Status {
	case store.TaskCompleted:
		lines = []string{
			m.styles.Success.Render("✓ Video ready"),
			"",
			m.styles.Normal.Render(m.task.ResultURL),
		}
	case store.TaskCancelled:
		lines = []string{m.styles.Muted.Render("Video cancelled")}
	default:
		lines = []string{
			m.styles.Error.Render("✗ Video failed"),
			"",
			m.styles.Normal.Render(m.task.Error),
		}
	}
	return lipgloss.JoinVertical(lipgloss.Center,
		m.styles.Border.Render(lipgloss.JoinVertical(lipgloss.Center, lines...)),
		m.statusLine(),
		m.help.View(summaryKeys{m.keys}),
	)
}

func (m *Model) statusLine() string {
	switch m.messageType {
	case "error":
		return m.styles.Error.Render(m.statusMessage)
	case "success":
		return m.styles.Success.Render(m.statusMessage)
	default:
		return m.styles.Muted.Render(m.statusMessage)
	}
}

// truncate shortens s to at most width terminal cells.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "…")
	}
	return s
}

func formatSize(n int64) string {
	switch {
	case n <= 0:
		return ""
	case n < 1<<10:
		return fmt.Sprintf("%d B", n)
	case n < 1<<20:
		return fmt.Sprintf("%.0f KB", float64(n)/(1<<10))
	default:
		return strings.TrimSuffix(fmt.Sprintf("%.1f", float64(n)/(1<<20)), ".0") + " MB"
	}
}
