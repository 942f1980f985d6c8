package status

import (
	"strings"
	"testing"
)

func TestView(t *testing.T) {
	m := New()
	m.Width = 80
	m.SetCounts(1, 2)
	m.Locale = "de"

	v := m.View()
	for _, want := range []string{"Connecting", "1/2 monitoring", "de"} {
		if !strings.Contains(v, want) {
			t.Errorf("status bar missing %q:\n%s", want, v)
		}
	}
	if strings.Contains(v, "alerts") {
		t.Error("alert count shown without errors")
	}

	m.Connected = true
	m.Errors = 3
	v = m.View()
	if !strings.Contains(v, "Connected") || !strings.Contains(v, "3 alerts") {
		t.Errorf("unexpected bar:\n%s", v)
	}
}
