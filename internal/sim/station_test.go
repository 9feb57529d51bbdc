package sim

import (
	"context"
	"io"
	"math"
	"net"
	"path/filepath"
	"testing"
	"time"

	"gnssmon/internal/capture"
	"gnssmon/internal/geodesy"
	"gnssmon/internal/rtcm"
)

// readFrame extracts the next frame from the connection. buf carries bytes
// left over from previous reads; back-to-back frames often arrive in one
// TCP segment.
func readFrame(t *testing.T, conn net.Conn, buf *[]byte) rtcm.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	chunk := make([]byte, 1024)
	for {
		f, consumed, ferr := rtcm.Extract(*buf)
		if ferr != nil {
			t.Fatalf("Extract: %v", ferr)
		}
		if consumed > 0 {
			*buf = (*buf)[consumed:]
			return f
		}

		n, err := conn.Read(chunk)
		if err != nil && err != io.EOF {
			t.Fatalf("Read: %v", err)
		}
		*buf = append(*buf, chunk[:n]...)
		if err == io.EOF && n == 0 {
			t.Fatalf("stream ended before a complete frame")
		}
	}
}

func TestServer_StreamsConfiguredStation(t *testing.T) {
	srv, err := New(Config{
		Listen:    "127.0.0.1:0",
		Interval:  5 * time.Millisecond,
		StationID: 2003,
		LatDeg:    37.4192,
		LonDeg:    -122.057,
		AltM:      10.0,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	var buf []byte
	f := readFrame(t, conn, &buf)
	if f.Type != rtcm.TypeStationARP {
		t.Fatalf("type=%d want %d", f.Type, rtcm.TypeStationARP)
	}
	arp, err := rtcm.DecodeStationARP(f.Payload)
	if err != nil {
		t.Fatalf("DecodeStationARP: %v", err)
	}
	if arp.StationID != 2003 {
		t.Fatalf("station_id=%d want 2003", arp.StationID)
	}

	lat, lon, alt := geodesy.ECEFToGeodetic(arp.X, arp.Y, arp.Z)
	if math.Abs(lat-37.4192) > 1e-6 || math.Abs(lon+122.057) > 1e-6 {
		t.Fatalf("lat/lon=%v/%v want 37.4192/-122.057", lat, lon)
	}
	if math.Abs(alt-10.0) > 1e-2 {
		t.Fatalf("alt=%v want 10.0", alt)
	}
}

func TestServer_ServesMultipleClients(t *testing.T) {
	srv, err := New(Config{Listen: "127.0.0.1:0", Interval: 5 * time.Millisecond, StationID: 7})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Close()

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", srv.Addr())
		if err != nil {
			t.Fatalf("Dial client %d: %v", i, err)
		}
		var buf []byte
		f := readFrame(t, conn, &buf)
		conn.Close()
		if f.Type != rtcm.TypeStationARP {
			t.Fatalf("client %d: type=%d", i, f.Type)
		}
	}
}

func TestServer_ReplaysCaptureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.log")
	w, err := capture.Create(path)
	if err != nil {
		t.Fatalf("capture.Create: %v", err)
	}
	origin := time.Now()
	frames := [][]byte{
		rtcm.EncodeStationARP(rtcm.StationARP{StationID: 1, X: 1e6, Y: 2e6, Z: 3e6}),
		rtcm.EncodeStationARP(rtcm.StationARP{StationID: 2, X: 1e6, Y: 2e6, Z: 3e6}),
	}
	for i, frame := range frames {
		if err := w.Append(origin.Add(time.Duration(i)*time.Millisecond), frame); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("capture close: %v", err)
	}

	srv, err := New(Config{
		Listen: "127.0.0.1:0",
		Replay: ReplayConfig{Path: path, Speed: 1000, Loop: false},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	var buf []byte
	for i, want := range []uint16{1, 2} {
		f := readFrame(t, conn, &buf)
		arp, err := rtcm.DecodeStationARP(f.Payload)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if arp.StationID != want {
			t.Fatalf("frame %d: station_id=%d want %d", i, arp.StationID, want)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("missing listen accepted")
	}
	if _, err := New(Config{Listen: "127.0.0.1:0", Replay: ReplayConfig{Path: "x", Speed: -1}}); err == nil {
		t.Fatalf("negative replay speed accepted")
	}
	if _, err := New(Config{Listen: "127.0.0.1:0", Replay: ReplayConfig{Path: filepath.Join(t.TempDir(), "missing.log"), Speed: 1}}); err == nil {
		t.Fatalf("missing replay file accepted")
	}
}

func TestServer_CloseStopsListener(t *testing.T) {
	srv, err := New(Config{Listen: "127.0.0.1:0", Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	addr := srv.Addr()
	srv.Close()

	if conn, err := net.DialTimeout("tcp", addr, 250*time.Millisecond); err == nil {
		conn.Close()
		t.Fatalf("listener still accepting after Close")
	}
}
