package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lawnchairsociety/questgraph/internal/config"
	"github.com/lawnchairsociety/questgraph/internal/feed"
	"github.com/lawnchairsociety/questgraph/internal/quest"
)

const testQuests = `
root: intro
quests:
  intro:
    title: Intro
    subquests:
      - title: Wake up
      - title: Leave the house
    unlocks: [market]
    activates: [letter]
  market:
    title: Market
  letter:
    title: The letter
    subquests:
      - title: Read it
`

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = backend
	cfg.Storage.Dir = t.TempDir()
	cfg.Feed.Address = "127.0.0.1:0"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()

	qc, err := quest.ParseQuestsYAML([]byte(testQuests))
	if err != nil {
		t.Fatalf("ParseQuestsYAML: %v", err)
	}
	graph, err := qc.BuildGraph()
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	a, err := newAppWithGraph(cfg, graph)
	if err != nil {
		t.Fatalf("newAppWithGraph: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	a.load("test")
	return a
}

func mustQuest(t *testing.T, a *app, id string) *quest.Quest {
	t.Helper()
	q, ok := a.graph.Get(id)
	if !ok {
		t.Fatalf("quest %s not found", id)
	}
	return q
}

func TestExecProgressesAndPersists(t *testing.T) {
	cfg := testConfig(t, config.BackendFile)
	a := newTestApp(t, cfg)

	if got := mustQuest(t, a, "intro_0").State; got != quest.StateActive {
		t.Fatalf("fresh start: intro_0 = %s, want active", got)
	}

	var out bytes.Buffer
	for _, id := range []string{"intro_0", "intro_1"} {
		if err := a.exec([]string{"complete", id}, "test", &out); err != nil {
			t.Fatalf("complete %s: %v", id, err)
		}
	}
	if !strings.Contains(out.String(), "intro_1 is completed") {
		t.Errorf("unexpected output %q", out.String())
	}
	if got := mustQuest(t, a, "market").State; got != quest.StateAvailable {
		t.Errorf("market = %s, want available", got)
	}

	// A second process over the same directory picks the progress up
	b := newTestApp(t, cfg)
	if got := mustQuest(t, b, "intro").State; got != quest.StateCompleted {
		t.Errorf("reloaded intro = %s, want completed", got)
	}
	if got := mustQuest(t, b, "letter_0").State; got != quest.StateActive {
		t.Errorf("reloaded letter_0 = %s, want active", got)
	}
}

func TestExecSetAll(t *testing.T) {
	a := newTestApp(t, testConfig(t, config.BackendMemory))

	if err := a.exec([]string{"set-all", "completed"}, "test", &bytes.Buffer{}); err != nil {
		t.Fatalf("set-all: %v", err)
	}
	for _, q := range a.graph.All() {
		if q.State != quest.StateCompleted {
			t.Errorf("%s = %s, want completed", q.ID, q.State)
		}
	}

	if err := a.exec([]string{"set-all", "done"}, "test", &bytes.Buffer{}); err == nil {
		t.Error("expected an error for an unknown state")
	}
}

func TestExecShowAndRebuild(t *testing.T) {
	a := newTestApp(t, testConfig(t, config.BackendMemory))

	var out bytes.Buffer
	if err := a.exec([]string{"show"}, "test", &out); err != nil {
		t.Fatalf("show: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	// Header, intro, 2 subquests, market, letter and its subquest, summary
	if len(lines) != 8 {
		t.Fatalf("show printed %d lines, want 8:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[1], "intro ") || !strings.Contains(lines[1], "intro_0") {
		t.Errorf("first row should be intro watching intro_0, got %q", lines[1])
	}
	if lines[7] != "0/6 finished" {
		t.Errorf("summary = %q, want 0/6 finished", lines[7])
	}

	// Completed and failed quests both count as finished
	for _, args := range [][]string{{"complete", "intro_0"}, {"fail", "letter_0"}} {
		if err := a.exec(args, "test", &bytes.Buffer{}); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}
	out.Reset()
	if err := a.exec([]string{"show"}, "test", &out); err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out.String()), "2/6 finished") {
		t.Errorf("unexpected summary in:\n%s", out.String())
	}

	out.Reset()
	if err := a.exec([]string{"rebuild"}, "test", &out); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !strings.Contains(out.String(), "6 entries") {
		t.Errorf("unexpected rebuild output %q", out.String())
	}
}

func TestExecErrors(t *testing.T) {
	a := newTestApp(t, testConfig(t, config.BackendMemory))

	tests := []struct {
		name      string
		args      []string
		wantUsage bool
	}{
		{"empty", nil, true},
		{"unknown verb", []string{"dance"}, true},
		{"missing id", []string{"complete"}, true},
		{"unknown quest", []string{"complete", "nope"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.exec(tt.args, "test", &bytes.Buffer{})
			if err == nil {
				t.Fatal("expected an error")
			}
			if errors.Is(err, errUsage) != tt.wantUsage {
				t.Errorf("usage error = %v, want %v (%v)", errors.Is(err, errUsage), tt.wantUsage, err)
			}
		})
	}
}

func TestNewGameAndDelete(t *testing.T) {
	a := newTestApp(t, testConfig(t, config.BackendMemory))

	if err := a.exec([]string{"complete", "intro"}, "test", &bytes.Buffer{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := a.exec([]string{"new-game"}, "test", &bytes.Buffer{}); err != nil {
		t.Fatalf("new-game: %v", err)
	}
	if got := mustQuest(t, a, "intro").State; got != quest.StateActive {
		t.Errorf("intro = %s after new game, want active", got)
	}
	if got := mustQuest(t, a, "market").State; got != quest.StateLocked {
		t.Errorf("market = %s after new game, want locked", got)
	}

	if err := a.exec([]string{"delete"}, "test", &bytes.Buffer{}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := a.exec([]string{"load"}, "test", &bytes.Buffer{}); err == nil {
		t.Error("loading a deleted slot should fail")
	}
}

func TestProgressHandler(t *testing.T) {
	a := newTestApp(t, testConfig(t, config.BackendMemory))

	rec := httptest.NewRecorder()
	a.progressHandler(rec, httptest.NewRequest("GET", "/progress", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var views []progressView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 6 {
		t.Fatalf("got %d rows, want 6", len(views))
	}
	if views[0].ID != "intro" || views[0].State != "active" {
		t.Errorf("first row = %+v", views[0])
	}
	if views[0].GUID != quest.DeriveGUID("intro").String() {
		t.Errorf("guid = %s", views[0].GUID)
	}
}

func TestProgressHandlerByGUID(t *testing.T) {
	a := newTestApp(t, testConfig(t, config.BackendMemory))
	guid := quest.DeriveGUID("market").String()

	rec := httptest.NewRecorder()
	a.progressHandler(rec, httptest.NewRequest("GET", "/progress?guid="+guid, nil))

	var views []progressView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 1 || views[0].ID != "market" || views[0].State != "locked" {
		t.Errorf("views = %+v, want only market locked", views)
	}

	rec = httptest.NewRecorder()
	a.progressHandler(rec, httptest.NewRequest("GET", "/progress?guid=nope", nil))
	if rec.Code != 404 {
		t.Errorf("unknown guid status = %d, want 404", rec.Code)
	}
}

func TestServeConsole(t *testing.T) {
	a := newTestApp(t, testConfig(t, config.BackendMemory))

	in := strings.NewReader("complete intro_0\n\nbogus\nquit\n")
	var out bytes.Buffer
	if err := a.serve(context.Background(), "test", in, &out); err != nil {
		t.Fatalf("serve: %v", err)
	}

	if !strings.Contains(out.String(), "intro_0 is completed") {
		t.Errorf("missing command output in %q", out.String())
	}
	if !strings.Contains(out.String(), "error:") {
		t.Errorf("bad command should print an error, got %q", out.String())
	}
	if got := mustQuest(t, a, "intro_1").State; got != quest.StateActive {
		t.Errorf("intro_1 = %s, want active", got)
	}
}

func TestShippedQuests(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory)
	cfg.QuestsPath = "../../data/quests"

	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if a.graph.Root().ID != "001_arrival" {
		t.Errorf("root = %s", a.graph.Root().ID)
	}
	if n := a.tracker.Snapshot().Len(); n != 13 {
		t.Errorf("progress has %d entries, want 13", n)
	}
	if _, ok := a.graph.Get("001_arrival_1_harbor_master"); !ok {
		t.Error("composed subquest ID not found")
	}
}

func TestWatchPrintsFeed(t *testing.T) {
	a := newTestApp(t, testConfig(t, config.BackendMemory))
	a.cfg.Feed.AllowedOrigins = []string{"*"}

	hub := feed.NewHub(a.cfg.Feed)
	hub.Watch(a.graph)
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out safeBuffer
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, "ws"+strings.TrimPrefix(server.URL, "http"), &out)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mustQuest(t, a, "market").Unlock(false)

	for !strings.Contains(out.String(), `"quest":"market"`) {
		if time.Now().After(deadline) {
			t.Fatalf("no market event printed, got %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch: %v", err)
	}
}

// safeBuffer is a bytes.Buffer safe for one writer and one reader
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
