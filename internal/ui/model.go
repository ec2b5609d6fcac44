// ABOUTME: Bubbletea model for the listener TUI
// ABOUTME: Draws the live waveform and transport state, maps keys to actions
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/liveplanting/liveplanting-go/pkg/viz"
)

// frameInterval is the waveform redraw rate
const frameInterval = time.Second / 30

const (
	defaultWaveWidth  = 64
	defaultWaveHeight = 9
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	waveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("76"))

	recStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	// Connection
	connection string
	serverName string
	mode       string

	// Transport
	running    bool
	recording  bool
	sampleRate int
	lastStatus string

	// Stats
	received    int64
	scheduled   int64
	rejected    int64
	underruns   int64
	bufferDepth time.Duration
	goroutines  int
	memAlloc    uint64

	// Waveform
	wave []float32

	lastErr   string
	showDebug bool

	width  int
	height int

	ctrl *Controls
	feed Feed
}

type frameMsg time.Time

// StatusMsg carries the player state
type StatusMsg struct {
	Connection string
	ServerName string
	Mode       string
	Running    bool
	Recording  bool
	SampleRate int
	LastStatus string
}

// StatsMsg carries playback statistics
type StatsMsg struct {
	Received    int64
	Scheduled   int64
	Rejected    int64
	Underruns   int64
	BufferDepth time.Duration
	Goroutines  int
	MemAlloc    uint64
}

// ErrorMsg shows a user-facing error until the next action
type ErrorMsg struct {
	Err error
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// Init starts the redraw loop
func (m Model) Init() tea.Cmd {
	return frameTick()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case frameMsg:
		if m.feed != nil {
			m.wave = m.feed.Snapshot()
		}
		return m, frameTick()
	case StatusMsg:
		m.applyStatus(msg)
	case StatsMsg:
		m.applyStats(msg)
	case ErrorMsg:
		if msg.Err != nil {
			m.lastErr = msg.Err.Error()
		}
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Live Planting"))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(waveStyle.Render(m.renderWaveform()))
	b.WriteString("\n")
	b.WriteString(m.renderStats())

	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	if m.lastErr != "" {
		b.WriteString(errStyle.Render("! " + m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s:Start  x:Stop  r:Record  l:Clear loops  a:Clear ambience  d:Debug  q:Quit"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderStatus() string {
	server := m.serverName
	if server == "" {
		server = "-"
	}

	transport := "stopped"
	if m.running {
		transport = "playing"
	}

	rec := valueStyle.Render("off")
	if m.recording {
		rec = recStyle.Render("● REC")
	}

	rate := "-"
	if m.sampleRate > 0 {
		rate = fmt.Sprintf("%d Hz", m.sampleRate)
	}

	lines := []string{
		labelStyle.Render("Server:    ") + valueStyle.Render(fmt.Sprintf("%s (%s)", server, m.connection)),
		labelStyle.Render("Mode:      ") + valueStyle.Render(m.mode),
		labelStyle.Render("Transport: ") + valueStyle.Render(transport),
		labelStyle.Render("Recording: ") + rec,
		labelStyle.Render("Output:    ") + valueStyle.Render(rate),
	}
	if m.lastStatus != "" {
		lines = append(lines, labelStyle.Render("Server says: ")+valueStyle.Render(m.lastStatus))
	}
	return strings.Join(lines, "\n") + "\n"
}

// waveSize returns the canvas size for the current window
func (m Model) waveSize() (int, int) {
	width, height := defaultWaveWidth, defaultWaveHeight
	if m.width > 4 {
		width = m.width - 2
	}
	if m.height > 0 && m.height < 24 {
		height = max(3, m.height-15)
	}
	return width, height
}

// renderWaveform draws the latest snapshot as one dot per column
func (m Model) renderWaveform() string {
	width, height := m.waveSize()
	return renderWave(m.wave, width, height)
}

func renderWave(samples []float32, width, height int) string {
	grid := make([][]rune, height)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", width))
	}

	mid := viz.Row(0, height)
	for x := 0; x < width; x++ {
		grid[mid][x] = '·'
	}

	for x, v := range viz.Columns(samples, width) {
		grid[viz.Row(v, height)][x] = '•'
	}

	lines := make([]string, height)
	for y, row := range grid {
		lines[y] = string(row)
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m Model) renderStats() string {
	return valueStyle.Render(fmt.Sprintf("RX: %d  Scheduled: %d  Rejected: %d  Underruns: %d  Buffer: %dms",
		m.received, m.scheduled, m.rejected, m.underruns, m.bufferDepth.Milliseconds())) + "\n"
}

func (m Model) renderDebug() string {
	return helpStyle.Render(fmt.Sprintf("Goroutines: %d  Heap: %.1f MB  Peak: %.2f",
		m.goroutines, float64(m.memAlloc)/(1024*1024), viz.Peak(m.wave))) + "\n"
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.ctrl != nil {
			select {
			case m.ctrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "s":
		m.send(ActionStart)
	case "x":
		m.send(ActionStop)
	case "r":
		m.send(ActionToggleRecording)
	case "l":
		m.send(ActionClearLoops)
	case "a":
		m.send(ActionClearAmbience)
	case "d":
		m.showDebug = !m.showDebug
		return m, nil
	default:
		return m, nil
	}

	m.lastErr = ""
	return m, nil
}

func (m Model) send(a Action) {
	if m.ctrl == nil {
		return
	}
	select {
	case m.ctrl.Actions <- a:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	m.connection = msg.Connection
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	m.mode = msg.Mode
	m.running = msg.Running
	m.recording = msg.Recording
	if msg.SampleRate > 0 {
		m.sampleRate = msg.SampleRate
	}
	m.lastStatus = msg.LastStatus
}

// applyStats updates model from stats message
func (m *Model) applyStats(msg StatsMsg) {
	m.received = msg.Received
	m.scheduled = msg.Scheduled
	m.rejected = msg.Rejected
	m.underruns = msg.Underruns
	m.bufferDepth = msg.BufferDepth
	m.goroutines = msg.Goroutines
	m.memAlloc = msg.MemAlloc
}
