package viewer

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/stlalpha/brepview/internal/display"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleBarStyle.Width(m.width).Render(m.titleLine()))
	b.WriteByte('\n')
	b.WriteString(m.viewport.View())
	b.WriteByte('\n')
	b.WriteString(statusBarStyle.Width(m.width).Render(m.statusLine()))
	b.WriteByte('\n')
	b.WriteString(m.helpLine())
	return b.String()
}

func (m Model) titleLine() string {
	badge := autoBadgeStyle.Render("AUTO")
	if m.mode == display.ModeManual {
		badge = manualBadgeStyle.Render("MANUAL")
	}
	title := " brepview"
	if m.hasFrame {
		title += " - " + m.frame.Remote
	}
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(badge)
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + badge
}

// statusLine reads "frame i/n  connection k of m  bytes  #seq".
func (m Model) statusLine() string {
	if m.stopped {
		return " " + m.message
	}
	var line string
	if !m.hasFrame {
		line = m.printer.Sprintf(" %d connection(s), nothing published yet", len(m.conns))
	} else {
		k := 0
		for i, cs := range m.conns {
			if cs.ID == m.frame.Conn {
				k = i + 1
				break
			}
		}
		line = m.printer.Sprintf(" frame %d/%d  connection %d of %d  %d bytes  #%d",
			m.frame.Index+1, m.frame.Total, k, len(m.conns), len(m.frame.Payload), m.frame.Seq)
	}
	if m.message != "" {
		line += "  " + messageStyle.Render(m.message)
	}
	return line
}

func (m Model) helpLine() string {
	parts := make([]string, 0, 6)
	for _, kb := range m.keys.helpBindings() {
		h := kb.Help()
		if !kb.Enabled() {
			parts = append(parts, helpDisabledStyle.Render(h.Key+" "+h.Desc))
			continue
		}
		parts = append(parts, helpKeyStyle.Render(h.Key)+" "+helpDescStyle.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}
