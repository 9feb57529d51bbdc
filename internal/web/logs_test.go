package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLogBuffer_SplitsAndJoinsLines(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("first line\nsecond "))
	_, _ = b.Write([]byte("half\r\nthird\n"))

	lines, dropped := b.Tail(10)
	if dropped != 0 {
		t.Fatalf("dropped=%d want 0", dropped)
	}
	want := []string{"first line", "second half", "third"}
	if len(lines) != len(want) {
		t.Fatalf("lines=%q want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line[%d]=%q want %q", i, lines[i], want[i])
		}
	}
}

func TestLogBuffer_RingDropsOldest(t *testing.T) {
	b := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		_, _ = b.Write([]byte(fmt.Sprintf("line %d\n", i)))
	}

	lines, dropped := b.Tail(10)
	if dropped != 2 {
		t.Fatalf("dropped=%d want 2", dropped)
	}
	if len(lines) != 3 || lines[0] != "line 2" || lines[2] != "line 4" {
		t.Fatalf("lines=%q", lines)
	}
}

func TestLogBuffer_TailLimit(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("a\nb\nc\n"))

	lines, _ := b.Tail(2)
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("lines=%q", lines)
	}
}

func TestLogsHandler(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("hello\nworld\n"))
	h := b.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/logs", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp LogsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[1] != "world" {
		t.Fatalf("lines=%q", resp.Lines)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/logs?format=text", nil))
	if !strings.Contains(rr.Body.String(), "hello\nworld\n") {
		t.Fatalf("text body=%q", rr.Body)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/logs?tail=0", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("tail=0 status=%d want 400", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/logs", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status=%d want 405", rr.Code)
	}
}
