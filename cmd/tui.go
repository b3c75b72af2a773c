// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Oxifoc Project

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/oxifoc/foclink/pkg/filament"
	"github.com/oxifoc/foclink/pkg/host"
	"github.com/oxifoc/foclink/pkg/probe"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive dashboard for the device link",
	Long: `Full-screen dashboard showing device identity, keepalive health, button
events and the live debug log in one view.

Supports both serial and WebSocket connections. Press q to quit.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// Messages from the link goroutines into the TUI
type logLineMsg string
type envelopeMsg string
type buttonMsg filament.ButtonEvent
type keepAliveMsg struct {
	seq     uint32
	anomaly error
}
type deviceInfoMsg struct {
	info filament.DeviceInfo
	err  error
}
type transportErrMsg struct{ err error }
type statsTickMsg time.Time

type buttonEntry struct {
	at    time.Time
	event filament.ButtonEvent
}

type tuiModel struct {
	connInfo string
	stack    *filament.Stack

	width  int
	height int
	ready  bool

	spin      spinner.Model
	probing   bool
	info      filament.DeviceInfo
	infoErr   error
	haveInfo  bool
	probeDone bool

	keepAliveSeq   uint32
	keepAliveCount uint64
	lastAnomaly    string

	buttons []buttonEntry

	logView  viewport.Model
	logLines []string

	stats        filament.Snapshot
	transportErr error
	quitting     bool
}

const maxTUILogLines = 500

func newTUIModel(connInfo string, stack *filament.Stack) tuiModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return tuiModel{
		connInfo: connInfo,
		stack:    stack,
		spin:     s,
		probing:  true,
	}
}

func statsTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, statsTickCmd(), tea.EnterAltScreen)
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 11
		if !m.ready {
			m.logView = viewport.New(msg.Width-2, max(3, msg.Height-headerHeight))
			m.ready = true
		} else {
			m.logView.Width = msg.Width - 2
			m.logView.Height = max(3, msg.Height-headerHeight)
		}
		m.logView.SetContent(strings.Join(m.logLines, "\n"))
		m.logView.GotoBottom()

	case spinner.TickMsg:
		if !m.probing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case statsTickMsg:
		m.stats = m.stack.Stats().Snapshot()
		return m, statsTickCmd()

	case deviceInfoMsg:
		m.probing = false
		m.probeDone = true
		if msg.err != nil {
			m.infoErr = msg.err
		} else {
			m.info = msg.info
			m.haveInfo = true
		}

	case keepAliveMsg:
		m.keepAliveSeq = msg.seq
		m.keepAliveCount++
		if msg.anomaly != nil {
			m.lastAnomaly = msg.anomaly.Error()
		}

	case buttonMsg:
		m.buttons = append(m.buttons, buttonEntry{at: time.Now(), event: filament.ButtonEvent(msg)})
		if len(m.buttons) > 5 {
			m.buttons = m.buttons[len(m.buttons)-5:]
		}

	case logLineMsg:
		m.appendLine(string(msg))

	case envelopeMsg:
		m.appendLine(string(msg))

	case transportErrMsg:
		m.transportErr = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m *tuiModel) appendLine(line string) {
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxTUILogLines {
		m.logLines = m.logLines[len(m.logLines)-maxTUILogLines:]
	}
	if m.ready {
		atBottom := m.logView.AtBottom()
		m.logView.SetContent(strings.Join(m.logLines, "\n"))
		if atBottom {
			m.logView.GotoBottom()
		}
	}
}

func (m tuiModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "starting..."
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	boxStyle := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Foclink") + "  " + labelStyle.Render(m.connInfo) + "\n\n")

	// Device identity
	switch {
	case m.probing:
		b.WriteString(m.spin.View() + labelStyle.Render("Device: ") + valueStyle.Render("probing...") + "\n")
	case m.haveInfo:
		b.WriteString(labelStyle.Render("Device: ") +
			valueStyle.Render(fmt.Sprintf("hw=%s sw=%s", m.info.HW, m.info.SW)) + "\n")
	default:
		b.WriteString(labelStyle.Render("Device: ") + warnStyle.Render("unresponsive") + "\n")
	}

	// Keepalive health
	ka := "none seen"
	if m.keepAliveCount > 0 {
		ka = fmt.Sprintf("seq=%d (%d received)", m.keepAliveSeq, m.keepAliveCount)
	}
	b.WriteString(labelStyle.Render("Keepalive: ") + valueStyle.Render(ka))
	if m.lastAnomaly != "" {
		b.WriteString("  " + warnStyle.Render(m.lastAnomaly))
	}
	b.WriteString("\n")

	// Recent button events
	b.WriteString(labelStyle.Render("Buttons: "))
	if len(m.buttons) == 0 {
		b.WriteString(valueStyle.Render("none"))
	} else {
		parts := make([]string, 0, len(m.buttons))
		for _, be := range m.buttons {
			parts = append(parts, fmt.Sprintf("%s %s", be.at.Format("15:04:05"), be.event))
		}
		b.WriteString(valueStyle.Render(strings.Join(parts, "  ")))
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Stats: ") + valueStyle.Render(m.stats.Format()) + "\n\n")

	b.WriteString(boxStyle.Width(m.logView.Width).Render(m.logView.View()) + "\n")
	b.WriteString(labelStyle.Render("q: quit  ↑/↓: scroll log"))

	return b.String()
}

func runTUI(cmd *cobra.Command, args []string) error {
	params, err := loadParams()
	if err != nil {
		return err
	}

	link, connInfo, err := OpenLink()
	if err != nil {
		return err
	}
	defer link.Close()

	down, err := link.Down(probe.ChannelMessagesDown)
	if err != nil {
		return fmt.Errorf("opening down channel: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var p *tea.Program

	stack := buildHostStack(down,
		func(e filament.ButtonEvent) { p.Send(buttonMsg(e)) },
		func(ka filament.KeepAlive, anomaly error) { p.Send(keepAliveMsg{seq: ka.Seq, anomaly: anomaly}) })

	p = tea.NewProgram(newTUIModel(connInfo, stack), tea.WithAltScreen())

	reader := &host.Reader{
		Link:       link,
		Stack:      stack,
		Source:     params.source,
		OnLogLine:  func(line string) { p.Send(logLineMsg(line)) },
		OnEnvelope: func(env *filament.Envelope) { p.Send(envelopeMsg(filament.FormatEnvelope(env))) },
	}
	go func() {
		if rerr := reader.Run(ctx); rerr != nil {
			p.Send(transportErrMsg{err: rerr})
		}
	}()

	go func() {
		hs := &host.Handshake{Stack: stack}
		info, herr := hs.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		p.Send(deviceInfoMsg{info: info, err: herr})
	}()

	_, err = p.Run()
	cancel()
	return err
}
