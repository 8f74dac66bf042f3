package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	prod := newLogger(&buf, "prod")
	prod.Debug().Msg("скрыто")
	if buf.Len() != 0 {
		t.Fatalf("debug не должен писаться вне dev")
	}

	dev := Component(newLogger(&buf, "dev"), "polls")
	dev.Debug().Msg("видно")
	out := buf.String()
	if !strings.Contains(out, `"service":"pulsepoint"`) || !strings.Contains(out, `"component":"polls"`) {
		t.Fatalf("ожидали поля service и component: %s", out)
	}
}
