package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/broadcast"
	"github.com/programme-lv/judge/internal/scoreboard"
	"github.com/programme-lv/judge/internal/store"
)

func newStandingsServer(t *testing.T) (*Server, *scoreboard.Engine) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	db := store.NewMemory()
	start := time.Now().Add(-time.Hour)
	if err := db.SaveContest(context.Background(), store.ContestRecord{
		ID:           1,
		StartEpochMs: start.UnixMilli(),
		EndEpochMs:   start.Add(5 * time.Hour).UnixMilli(),
		ProblemIDs:   []int64{101, 102},
	}); err != nil {
		t.Fatal(err)
	}

	board := scoreboard.NewEngine(db, db, log)
	bcast := broadcast.NewBroadcaster(log)
	return NewServer(nil, board, bcast, broadcast.MultiSink{bcast}, log), board
}

func TestGetStandingsETag(t *testing.T) {
	srv, board := newStandingsServer(t)
	router := srv.Router()

	board.RecordSubmissionResult(context.Background(), 1, 101, 7, "alice", true, time.Now())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/standings/contests/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	etag := rec.Header().Get("ETag")
	if etag != `"1"` {
		t.Errorf("etag = %s, want \"1\"", etag)
	}

	var snap api.Standings
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Version != 1 || len(snap.Rows) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Status != api.ContestRunning {
		t.Errorf("status = %s, want RUNNING", snap.Status)
	}

	// matching If-None-Match gets a cheap 304
	req := httptest.NewRequest(http.MethodGet, "/api/standings/contests/1", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", rec.Code)
	}

	// a new result bumps the version and the stale ETag misses
	board.RecordSubmissionResult(context.Background(), 1, 102, 7, "alice", true, time.Now())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 after version bump", rec.Code)
	}
}

func TestGetStandingsBadContestID(t *testing.T) {
	srv, _ := newStandingsServer(t)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/standings/contests/abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPostRowUpdate(t *testing.T) {
	srv, board := newStandingsServer(t)
	router := srv.Router()

	body := `{"problem_ids":[103],"row":{"user_id":9,"username":"dave","solved":1,"penalty_minutes":40,"cells":{"103":{"time_from_start_min":40}}}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/standings/contests/1/row", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	snap := board.Snapshot(context.Background(), 1)
	if len(snap.Rows) != 1 || snap.Rows[0].Username != "dave" {
		t.Fatalf("rows = %+v", snap.Rows)
	}
	if len(snap.ProblemIDs) != 3 {
		t.Errorf("problem ids = %v, want 103 merged in", snap.ProblemIDs)
	}
}

func TestStreamStandingsDeliversEvents(t *testing.T) {
	srv, board := newStandingsServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/standings/contests/1/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %s", ct)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	readLine := func() string {
		select {
		case line := <-lines:
			return line
		case <-time.After(2 * time.Second):
			t.Fatal("timed out reading from stream")
			return ""
		}
	}

	if line := readLine(); line != "retry: 5000" {
		t.Fatalf("first line = %q, want reconnect delay", line)
	}
	// skip blank separators until the heartbeat arrives
	for {
		if line := readLine(); strings.HasPrefix(line, "event: ") {
			if line != "event: HEARTBEAT" {
				t.Fatalf("first event = %q, want HEARTBEAT", line)
			}
			break
		}
	}

	version, row, _ := board.RecordSubmissionResult(context.Background(), 1, 101, 7, "alice", true, time.Now())
	srv.events.Publish(1, api.StandingsEvent{
		Type: api.RowUpdateEvent, ContestID: 1, Version: version, Rows: []api.StandingRow{row},
	})

	for {
		line := readLine()
		if !strings.HasPrefix(line, "event: ") {
			continue
		}
		if line != "event: ROW_UPDATE" {
			t.Fatalf("event = %q, want ROW_UPDATE", line)
		}
		if data := readLine(); !strings.Contains(data, `"alice"`) {
			t.Errorf("data = %q, want alice's row", data)
		}
		return
	}
}
