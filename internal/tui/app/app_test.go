package app

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pcg-live/monitor/internal/session"
	"github.com/pcg-live/monitor/internal/tui/client"
	"github.com/pcg-live/monitor/internal/ws"
)

type fakeAPI struct {
	calls   []string
	running map[string]bool
}

func (f *fakeAPI) snap(id string) *session.Snapshot {
	s := &session.Snapshot{SessionID: id, Status: session.Paused, LastUpdated: time.Now()}
	if f.running[id] {
		s.RunState = session.Running
		s.Status = session.Normal
		s.HeartRate = 72
	}
	return s
}

func (f *fakeAPI) Start(id string) (*session.Snapshot, error) {
	f.calls = append(f.calls, "start "+id)
	f.running[id] = true
	return f.snap(id), nil
}

func (f *fakeAPI) Stop(id string) (*session.Snapshot, error) {
	f.calls = append(f.calls, "stop "+id)
	f.running[id] = false
	return f.snap(id), nil
}

func (f *fakeAPI) InjectAnomaly(id string) (*session.Snapshot, error) {
	f.calls = append(f.calls, "anomaly "+id)
	if !f.running[id] {
		return nil, &client.APIError{Status: 409, Code: "not_running", Message: "Start monitoring first"}
	}
	return f.snap(id), nil
}

func (f *fakeAPI) Labels() (map[string]string, error) {
	return map[string]string{
		"paused":                 "Pausiert",
		"normal":                 "Normal",
		"start_monitoring_first": "Bitte zuerst die Überwachung starten",
		"bpm":                    "S/min",
	}, nil
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

// send feeds msg to m and runs any plain command it returns once, feeding
// the result back. Batches and ticks are not followed.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	switch out := cmd().(type) {
	case actionMsg, labelsMsg:
		next, _ = m.Update(out)
		m = next.(Model)
	}
	return m
}

func newTestModel(t *testing.T) (Model, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{running: make(map[string]bool)}
	m := New(nil, api, "de")
	m = send(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m = send(t, m, client.WSSnapshotMsg{Sessions: []*session.Snapshot{api.snap("patient"), api.snap("doctor")}})
	return m, api
}

func TestSnapshotOrdersSessions(t *testing.T) {
	m, _ := newTestModel(t)
	if got := strings.Join(m.order, ","); got != "doctor,patient" {
		t.Errorf("order = %s", got)
	}
	if m.SelectedID() != "doctor" {
		t.Errorf("selected = %s, want doctor", m.SelectedID())
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.SelectedID() != "patient" {
		t.Errorf("tab: selected = %s, want patient", m.SelectedID())
	}
	m = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.SelectedID() != "doctor" {
		t.Errorf("tab should wrap, selected = %s", m.SelectedID())
	}
	m = send(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.SelectedID() != "patient" {
		t.Errorf("shift+tab: selected = %s, want patient", m.SelectedID())
	}
}

func TestStartStopSelected(t *testing.T) {
	m, api := newTestModel(t)

	m = send(t, m, runes("s"))
	if len(api.calls) != 1 || api.calls[0] != "start doctor" {
		t.Fatalf("calls = %v", api.calls)
	}
	if !m.sessions["doctor"].IsRunning() {
		t.Error("action result not applied")
	}
	if m.statusBar.Running != 1 || m.statusBar.Total != 2 {
		t.Errorf("status counts = %d/%d", m.statusBar.Running, m.statusBar.Total)
	}

	m = send(t, m, runes("x"))
	if m.sessions["doctor"].IsRunning() {
		t.Error("stop not applied")
	}
}

func TestAnomalyWhileIdleAlerts(t *testing.T) {
	m, api := newTestModel(t)
	m = send(t, m, labelsMsg{Labels: mustLabels(t, api)})

	m = send(t, m, runes("a"))
	if len(m.alerts.Items) != 1 {
		t.Fatalf("alerts = %d, want 1", len(m.alerts.Items))
	}
	if got := m.alerts.Items[0].Text; got != "Bitte zuerst die Überwachung starten" {
		t.Errorf("alert text = %q", got)
	}
	if m.alerts.Items[0].Level != session.LevelInfo {
		t.Error("refused anomaly should be an info alert")
	}
}

func mustLabels(t *testing.T, api *fakeAPI) map[string]string {
	t.Helper()
	l, err := api.Labels()
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestNotificationFeed(t *testing.T) {
	m, _ := newTestModel(t)
	m = send(t, m, client.WSNotificationMsg{Payload: ws.NotificationPayload{
		Event: session.Event{
			Type:      session.EventFault,
			Level:     session.LevelError,
			SessionID: "patient",
			Key:       session.MsgInternalError,
			At:        time.Now(),
		},
		Message: "Monitoring stopped due to an internal error",
	}})

	if len(m.alerts.Items) != 1 || m.alerts.Items[0].Text != "Monitoring stopped due to an internal error" {
		t.Fatalf("alerts = %+v", m.alerts.Items)
	}
	if m.statusBar.Errors != 1 {
		t.Errorf("status bar errors = %d", m.statusBar.Errors)
	}
}

func TestDeltaKeepsNewest(t *testing.T) {
	m, _ := newTestModel(t)
	now := time.Now()
	m = send(t, m, client.WSDeltaMsg{Updates: []*session.Snapshot{
		{SessionID: "doctor", Tick: 5, Status: session.Normal, RunState: session.Running, HeartRate: 80, LastUpdated: now},
	}})
	m = send(t, m, client.WSDeltaMsg{Updates: []*session.Snapshot{
		{SessionID: "doctor", Tick: 4, LastUpdated: now.Add(-time.Second)},
	}})
	if m.sessions["doctor"].Tick != 5 {
		t.Errorf("older delta replaced newer snapshot: tick %d", m.sessions["doctor"].Tick)
	}
	if m.readout.Target() != 80 {
		t.Errorf("readout target = %d, want 80", m.readout.Target())
	}
}

func TestOverlays(t *testing.T) {
	m, _ := newTestModel(t)

	m = send(t, m, runes("?"))
	if m.overlay != OverlayHelp {
		t.Fatal("? should open help")
	}
	if v := m.View(); !strings.Contains(v, "inject") {
		t.Errorf("help overlay missing bindings:\n%s", v)
	}
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.overlay != OverlayNone {
		t.Fatal("esc should close help")
	}

	m = send(t, m, runes("d"))
	if m.overlay != OverlayDebug || !strings.Contains(m.View(), "DEBUG LOG") {
		t.Fatal("d should open the debug log")
	}
	m = send(t, m, runes("s"))
	if m.sessions["doctor"].IsRunning() {
		t.Error("keys other than close and scroll must be ignored under an overlay")
	}
	m = send(t, m, runes("d"))
	if m.overlay != OverlayNone {
		t.Error("d should toggle the debug log closed")
	}
}

func TestViewMainScreen(t *testing.T) {
	api := &fakeAPI{running: make(map[string]bool)}
	m := New(nil, api, "de")
	if m.View() != "Initializing..." {
		t.Error("view before sizing should be a placeholder")
	}

	m, _ = newTestModel(t)
	m = send(t, m, labelsMsg{Labels: mustLabels(t, api)})
	v := m.View()
	for _, want := range []string{"doctor", "patient", "Pausiert", "S/min", "ALERTS"} {
		if !strings.Contains(v, want) {
			t.Errorf("main view missing %q", want)
		}
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	if m.ctx.Err() == nil {
		t.Error("quit should cancel the model context")
	}
}

func TestLabelsError(t *testing.T) {
	m, _ := newTestModel(t)
	m = send(t, m, labelsMsg{Err: errors.New("boom")})
	if len(m.labels) != 0 {
		t.Error("labels set despite error")
	}
	if n := len(m.debug.Entries); n == 0 || !strings.Contains(m.debug.Entries[n-1].Message, "boom") {
		t.Error("label error not logged")
	}
}
