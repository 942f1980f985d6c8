package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pcg-live/monitor/internal/session"
	"github.com/pcg-live/monitor/internal/tui/client"
	"github.com/pcg-live/monitor/internal/tui/theme"
	"github.com/pcg-live/monitor/internal/tui/views/alerts"
	"github.com/pcg-live/monitor/internal/tui/views/badge"
	"github.com/pcg-live/monitor/internal/tui/views/debug"
	helpview "github.com/pcg-live/monitor/internal/tui/views/help"
	"github.com/pcg-live/monitor/internal/tui/views/readout"
	"github.com/pcg-live/monitor/internal/tui/views/status"
	"github.com/pcg-live/monitor/internal/tui/views/waveform"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayHelp
	OverlayDebug
)

// API is the subset of the REST client the model drives.
type API interface {
	Start(id string) (*session.Snapshot, error)
	Stop(id string) (*session.Snapshot, error)
	InjectAnomaly(id string) (*session.Snapshot, error)
	Labels() (map[string]string, error)
}

// Stream is the websocket side.
type Stream interface {
	Listen(ctx context.Context) tea.Cmd
	ReadLoop(ctx context.Context) tea.Cmd
}

type actionMsg struct {
	Verb      string
	SessionID string
	Snap      *session.Snapshot
	Err       error
}

type labelsMsg struct {
	Labels map[string]string
	Err    error
}

// Model is the root Bubble Tea model.
type Model struct {
	ws     Stream
	api    API
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	help   help.Model
	width  int
	height int

	sessions map[string]*session.Snapshot
	order    []string
	selected int
	labels   map[string]string

	overlay   Overlay
	statusBar status.Model
	readout   readout.Model
	alerts    alerts.Model
	debug     debug.Model

	connected bool
}

// New creates the root model. locale is shown in the status bar; labels
// are fetched from the server in that locale.
func New(ws Stream, api API, locale string) Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		ws:        ws,
		api:       api,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		sessions:  make(map[string]*session.Snapshot),
		labels:    make(map[string]string),
		statusBar: status.New(),
		readout:   readout.New("BPM"),
		alerts:    alerts.New(),
		debug:     debug.New(),
	}
	m.statusBar.Locale = locale
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetchLabels()}
	if m.ws != nil {
		cmds = append(cmds, m.ws.Listen(m.ctx))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case readout.FrameMsg:
		var cmd tea.Cmd
		m.readout, cmd = m.readout.Update(msg)
		return m, cmd

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.debug.Addf(debug.KindWS, "connected")
		return m, m.readNext()

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.debug.Addf(debug.KindError, "disconnected: %v", msg.Err)
		if m.ws == nil {
			return m, nil
		}
		return m, m.ws.Listen(m.ctx)

	case client.WSSnapshotMsg:
		m.sessions = make(map[string]*session.Snapshot, len(msg.Sessions))
		for _, s := range msg.Sessions {
			m.sessions[s.SessionID] = s
		}
		m.debug.Addf(debug.KindWS, "snapshot: %d sessions", len(msg.Sessions))
		cmd := m.sessionsChanged(true)
		return m, tea.Batch(cmd, m.readNext())

	case client.WSDeltaMsg:
		for _, s := range msg.Updates {
			if old, ok := m.sessions[s.SessionID]; ok && s.LastUpdated.Before(old.LastUpdated) {
				continue
			}
			m.sessions[s.SessionID] = s
		}
		cmd := m.sessionsChanged(false)
		return m, tea.Batch(cmd, m.readNext())

	case client.WSNotificationMsg:
		ev := msg.Payload
		m.alerts.Add(alerts.Alert{
			At:        ev.At,
			Level:     ev.Level,
			SessionID: ev.SessionID,
			Text:      m.eventText(ev.Key, ev.Message, ev.Type, ev.Status),
		})
		m.statusBar.Errors = m.alerts.Errors()
		m.debug.Addf(debug.KindEvent, "%s %s %s", ev.SessionID, ev.Type, ev.Key)
		return m, m.readNext()

	case client.WSErrorMsg:
		m.debug.Addf(debug.KindError, "server: %s %s", msg.Payload.Code, msg.Payload.Message)
		return m, m.readNext()

	case actionMsg:
		return m.handleAction(msg)

	case labelsMsg:
		if msg.Err != nil {
			m.debug.Addf(debug.KindError, "labels: %v", msg.Err)
			return m, nil
		}
		m.labels = msg.Labels
		m.readout.Label = m.label("bpm")
		m.debug.Addf(debug.KindAPI, "labels: %d entries", len(msg.Labels))
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Help) && m.overlay == OverlayHelp,
			key.Matches(msg, m.keys.Debug) && m.overlay == OverlayDebug:
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up) && m.overlay == OverlayDebug:
			m.debug.Scroll(1)
		case key.Matches(msg, m.keys.Down) && m.overlay == OverlayDebug:
			m.debug.Scroll(-1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Next):
		m.selectBy(1)
	case key.Matches(msg, m.keys.Prev):
		m.selectBy(-1)
	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
	case key.Matches(msg, m.keys.Start):
		return m, m.action("start")
	case key.Matches(msg, m.keys.Stop):
		return m, m.action("stop")
	case key.Matches(msg, m.keys.Anomaly):
		return m, m.action("anomaly")
	}
	return m, nil
}

func (m Model) handleAction(msg actionMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.debug.Addf(debug.KindError, "%s %s: %v", msg.Verb, msg.SessionID, msg.Err)
		if client.IsNotRunning(msg.Err) {
			m.alerts.Add(alerts.Alert{
				Level:     session.LevelInfo,
				SessionID: msg.SessionID,
				Text:      m.label(session.MsgStartFirst),
			})
		}
		return m, nil
	}
	m.debug.Addf(debug.KindAPI, "%s %s ok", msg.Verb, msg.SessionID)
	if msg.Snap == nil {
		return m, nil
	}
	if old, ok := m.sessions[msg.SessionID]; !ok || !msg.Snap.LastUpdated.Before(old.LastUpdated) {
		m.sessions[msg.SessionID] = msg.Snap
	}
	return m, m.sessionsChanged(false)
}

// action returns the command performing verb on the selected session.
func (m Model) action(verb string) tea.Cmd {
	id := m.SelectedID()
	if id == "" || m.api == nil {
		return nil
	}
	api := m.api
	return func() tea.Msg {
		var (
			snap *session.Snapshot
			err  error
		)
		switch verb {
		case "start":
			snap, err = api.Start(id)
		case "stop":
			snap, err = api.Stop(id)
		case "anomaly":
			snap, err = api.InjectAnomaly(id)
		}
		return actionMsg{Verb: verb, SessionID: id, Snap: snap, Err: err}
	}
}

func (m Model) fetchLabels() tea.Cmd {
	if m.api == nil {
		return nil
	}
	api := m.api
	return func() tea.Msg {
		labels, err := api.Labels()
		return labelsMsg{Labels: labels, Err: err}
	}
}

func (m Model) readNext() tea.Cmd {
	if m.ws == nil {
		return nil
	}
	return m.ws.ReadLoop(m.ctx)
}

// SelectedID returns the id of the session on screen.
func (m Model) SelectedID() string {
	if len(m.order) == 0 {
		return ""
	}
	return m.order[m.selected]
}

func (m *Model) selectBy(delta int) {
	if len(m.order) == 0 {
		return
	}
	m.selected = (m.selected + delta + len(m.order)) % len(m.order)
	if s := m.sessions[m.SelectedID()]; s != nil {
		m.readout.Jump(s.HeartRate)
	}
}

// sessionsChanged rebuilds the order, keeps the selection on the same id
// and retargets the heart-rate readout.
func (m *Model) sessionsChanged(jump bool) tea.Cmd {
	prev := m.SelectedID()
	m.order = make([]string, 0, len(m.sessions))
	running := 0
	for id, s := range m.sessions {
		m.order = append(m.order, id)
		if s.IsRunning() {
			running++
		}
	}
	sort.Strings(m.order)
	m.statusBar.SetCounts(running, len(m.order))

	m.selected = 0
	for i, id := range m.order {
		if id == prev {
			m.selected = i
		}
	}

	s := m.sessions[m.SelectedID()]
	if s == nil {
		return nil
	}
	if jump || prev != s.SessionID {
		m.readout.Jump(s.HeartRate)
		return nil
	}
	return m.readout.SetTarget(s.HeartRate)
}

// label resolves a key through the fetched labels, falling back to the key.
func (m Model) label(key string) string {
	if v, ok := m.labels[key]; ok {
		return v
	}
	return key
}

func (m Model) eventText(key, serverText string, typ session.EventType, st session.Status) string {
	text := serverText
	if v, ok := m.labels[key]; ok {
		text = v
	}
	if text == "" {
		text = key
	}
	if typ == session.EventStatus {
		text = fmt.Sprintf("%s: %s", text, m.label(st.String()))
	}
	return text
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayHelp:
		return helpview.View(m.keys.all(), m.width)
	case OverlayDebug:
		return m.debug.View(m.width, m.height)
	}

	sections := []string{m.statusBar.View(), m.renderTabs()}
	if s := m.sessions[m.SelectedID()]; s != nil {
		sections = append(sections, m.renderSession(s))
	} else {
		sections = append(sections, theme.StyleDimmed.Render("  No sessions yet"))
	}
	sections = append(sections, m.alerts.View(m.width, 5), m.help.ShortHelpView(m.keys.ShortHelp()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTabs() string {
	var tabs []string
	for i, id := range m.order {
		s := m.sessions[id]
		glyph := lipgloss.NewStyle().Foreground(theme.StatusColor(s.Status)).Render(theme.StatusGlyph(s.Status))
		var name string
		if i == m.selected {
			name = theme.StyleSelected.Underline(true).Render(id)
		} else {
			name = theme.StyleDimmed.Render(id)
		}
		tabs = append(tabs, " "+glyph+" "+name+" ")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderSession(s *session.Snapshot) string {
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		theme.StyleHeader.Render(m.label("live_pcg")), "  ",
		badge.Render(s.Status, m.label(s.Status.String())), "  ",
		m.readout.View(), "  ",
		theme.StyleDimmed.Render(fmt.Sprintf("tick %d", s.Tick)),
	)

	plotH := max(m.height-18, 6)
	return lipgloss.JoinVertical(lipgloss.Left, header, waveform.View(s.Samples, m.width, plotH, s.IsRunning()))
}
