package main

import (
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"stackcraft.ai/internal/sim/session"
	"stackcraft.ai/internal/sim/tuning"
)

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5555": true,
		"[::1]:80":       true,
		"10.0.0.3:1234":  false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("%s: got %v want %v", in, got, want)
		}
	}
}

type recordingLogger struct {
	changes []session.ChangeEntry
	audits  []session.AuditEntry
	err     error
}

func (r *recordingLogger) WriteChange(e session.ChangeEntry) error {
	r.changes = append(r.changes, e)
	return r.err
}

func (r *recordingLogger) WriteAudit(e session.AuditEntry) error {
	r.audits = append(r.audits, e)
	return r.err
}

func TestMultiLoggers_FanOut(t *testing.T) {
	a := &recordingLogger{err: errors.New("disk full")}
	b := &recordingLogger{}
	if err := multiChangeLogger{a, b}.WriteChange(session.ChangeEntry{Seq: 1}); err == nil {
		t.Fatalf("expected first error to surface")
	}
	if err := multiAuditLogger{b}.WriteAudit(session.AuditEntry{Seq: 2}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(a.changes) != 1 || len(b.changes) != 1 || len(b.audits) != 1 {
		t.Fatalf("fan-out: a=%d b=%d audits=%d", len(a.changes), len(b.changes), len(b.audits))
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	tune := tuning.Defaults()
	tune.Index.Path = filepath.Join(t.TempDir(), "index", "changes.sqlite")

	if idx, err := openRuntimeIndex(tune, true); idx != nil || err != nil {
		t.Fatalf("disabled: %v %v", idx, err)
	}

	t.Setenv("SC_INDEX_BACKEND", "none")
	if idx, err := openRuntimeIndex(tune, false); idx != nil || err != nil {
		t.Fatalf("none: %v %v", idx, err)
	}

	t.Setenv("SC_INDEX_BACKEND", "d1")
	if _, err := openRuntimeIndex(tune, false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}

	t.Setenv("SC_INDEX_BACKEND", "")
	idx, err := openRuntimeIndex(tune, false)
	if err != nil || idx == nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer idx.Close()
	if st := idx.Stats(); st.QueueCapacity == 0 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestWriteMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	writeMetrics(rec, session.Metrics{Clients: 2, OpsTotal: 7, OpsFailed: 1}, nil)
	body := rec.Body.String()
	for _, want := range []string{"stackcraft_clients 2", "stackcraft_ops_total 7", "stackcraft_ops_failed_total 1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
	if strings.Contains(body, "stackcraft_index") {
		t.Fatalf("index metrics without an index:\n%s", body)
	}
}

func TestTuningDigest_Stable(t *testing.T) {
	a := tuning.Defaults()
	b := tuning.Defaults()
	if tuningDigest(a) != tuningDigest(b) {
		t.Fatalf("digest not stable")
	}
	b.InventorySize++
	if tuningDigest(a) == tuningDigest(b) {
		t.Fatalf("digest ignores changes")
	}
}
