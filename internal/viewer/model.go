// Package viewer consumes published frames: a terminal UI that shows the
// current payload and sends navigation commands, and a headless consumer that
// only logs and acknowledges.
package viewer

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stlalpha/brepview/internal/display"
)

const (
	minWidth  = 40
	minHeight = 10
	chrome    = 3 // title, status and help rows
)

// frameReadyMsg is sent when the worker has published a frame.
type frameReadyMsg struct{}

// workerDoneMsg is sent when the worker has shut down.
type workerDoneMsg struct{}

// Model is the BubbleTea model for the frame viewer.
type Model struct {
	consumer *display.Consumer
	keys     KeyMap
	viewport viewport.Model
	printer  *message.Printer

	frame    display.Frame
	hasFrame bool
	conns    []display.ConnStatus
	mode     display.Mode
	syncing  bool // mode toggled here, worker not caught up yet
	stopped  bool
	message  string // Flash message

	width  int
	height int
}

// New creates a viewer model reading from c.
func New(c *display.Consumer) Model {
	m := Model{
		consumer: c,
		keys:     DefaultKeyMap(),
		viewport: viewport.New(minWidth, minHeight-chrome),
		printer:  message.NewPrinter(language.English),
		mode:     c.Mode(),
		width:    minWidth,
		height:   minHeight,
	}
	m.keys.setAuto(m.mode == display.ModeAuto)
	m.viewport.SetContent(emptyStyle.Render("Waiting for a client..."))
	return m
}

// waitForFrame blocks until the next publish or shutdown.
func waitForFrame(c *display.Consumer) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-c.Ready():
			return frameReadyMsg{}
		case <-c.Done():
			return workerDoneMsg{}
		}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.SetWindowTitle("brepview"), waitForFrame(m.consumer))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(msg.Width, minWidth)
		m.height = max(msg.Height, minHeight)
		m.viewport.Width = m.width
		m.viewport.Height = m.height - chrome
		return m, nil

	case frameReadyMsg:
		if f, ok := m.consumer.Frame(); ok {
			m.frame = f
			m.hasFrame = true
			m.viewport.SetContent(payloadText(f.Payload))
			m.viewport.GotoTop()
		}
		m.conns = m.consumer.Connections()
		m.syncMode(m.consumer.Mode())
		m.consumer.MarkConsumed()
		return m, waitForFrame(m.consumer)

	case workerDoneMsg:
		m.stopped = true
		m.message = "worker stopped"
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Previous):
		m.consumer.MovePrevious()
		return m, nil
	case key.Matches(msg, m.keys.Next):
		m.consumer.MoveNext()
		return m, nil
	case key.Matches(msg, m.keys.Toggle):
		auto := m.mode != display.ModeAuto
		m.consumer.SetMode(auto)
		m.syncing = true
		if auto {
			m.setMode(display.ModeAuto)
			m.message = "always drawing the newest frame"
		} else {
			m.setMode(display.ModeManual)
			m.message = "manual navigation"
		}
		return m, nil
	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	if m.mode == display.ModeAuto && (boundTo(m.keys.Previous, msg) || boundTo(m.keys.Next, msg)) {
		m.message = "navigation is disabled while always drawing new frames"
	}
	return m, nil
}

// boundTo reports whether msg is one of b's keys, enabled or not.
func boundTo(b key.Binding, msg tea.KeyMsg) bool {
	for _, k := range b.Keys() {
		if k == msg.String() {
			return true
		}
	}
	return false
}

// syncMode adopts the worker's mode unless a local toggle is still queued.
func (m *Model) syncMode(worker display.Mode) {
	if m.syncing {
		if worker != m.mode {
			return
		}
		m.syncing = false
	}
	m.setMode(worker)
}

func (m *Model) setMode(mode display.Mode) {
	m.mode = mode
	m.keys.setAuto(mode == display.ModeAuto)
}

// Run shows the viewer on the terminal until the user quits or ctx is done.
func Run(ctx context.Context, c *display.Consumer) error {
	p := tea.NewProgram(New(c), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("viewer: %w", err)
	}
	return nil
}
