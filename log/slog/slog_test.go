package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/rowcache"
)

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})
	l := New(stdslog.New(h))

	l.Debug("dropped", rowcache.Fields{"k": 1})
	if buf.Len() != 0 {
		t.Fatalf("debug must be filtered: %s", buf.String())
	}

	l.Warn("dropping unreadable cache entry", rowcache.Fields{"reason": "corrupt", "key": "q:1"})
	out := buf.String()
	for _, want := range []string{"level=WARN", "component=rowcache", "key=q:1 reason=corrupt"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}
