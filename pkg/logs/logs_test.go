package logs_test

import (
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/opst/fleetdeck/pkg/logs"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]struct {
		lvl log.Lvl
		ok  bool
	}{
		"debug": {lvl: log.DEBUG, ok: true},
		"INFO":  {lvl: log.INFO, ok: true},
		"":      {lvl: log.WARN, ok: true},
		"warn":  {lvl: log.WARN, ok: true},
		"error": {lvl: log.ERROR, ok: true},
		"off":   {lvl: log.OFF, ok: true},
		"loud":  {lvl: log.WARN, ok: false},
	} {
		lvl, ok := logs.ParseLevel(in)
		if lvl != want.lvl || ok != want.ok {
			t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", in, lvl, ok, want.lvl, want.ok)
		}
	}
}

func TestNew(t *testing.T) {
	l := logs.New("test", "error")
	if l.Level() != log.ERROR {
		t.Errorf("level = %v", l.Level())
	}
}
