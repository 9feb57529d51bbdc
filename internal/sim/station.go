// Package sim serves the RTCM stream of a stationary base station over TCP
// so the monitor can be developed and tested without receiver hardware.
package sim

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gnssmon/internal/capture"
	"gnssmon/internal/geodesy"
	"gnssmon/internal/rtcm"
)

type Config struct {
	Listen   string
	Interval time.Duration

	// Synthesized station, used when no replay file is set.
	StationID uint16
	LatDeg    float64
	LonDeg    float64
	AltM      float64

	// Replay, when Path is set, streams a capture file instead.
	Replay ReplayConfig
}

type ReplayConfig struct {
	Path  string
	Speed float64
	Loop  bool
}

// Server accepts any number of clients and streams the same station to each.
type Server struct {
	cfg     Config
	frame   []byte           // synthesized 1005, nil in replay mode
	records []capture.Record // replay mode

	started atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	mu sync.Mutex
	ln net.Listener
}

func New(cfg Config) (*Server, error) {
	if cfg.Listen == "" {
		return nil, fmt.Errorf("sim listen address is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Second
	}

	s := &Server{cfg: cfg, done: make(chan struct{})}
	if cfg.Replay.Path != "" {
		if cfg.Replay.Speed <= 0 {
			return nil, fmt.Errorf("sim replay speed must be > 0, got %v", cfg.Replay.Speed)
		}
		records, err := capture.ReadFile(cfg.Replay.Path)
		if err != nil {
			return nil, fmt.Errorf("sim replay: %w", err)
		}
		s.records = records
		return s, nil
	}

	x, y, z := geodesy.GeodeticToECEF(cfg.LatDeg, cfg.LonDeg, cfg.AltM)
	s.frame = rtcm.EncodeStationARP(rtcm.StationARP{
		StationID:        cfg.StationID,
		GPS:              true,
		GLONASS:          true,
		ReferenceStation: true,
		X:                x,
		Y:                y,
		Z:                z,
	})
	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("sim server is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	if s.closed.Load() {
		return fmt.Errorf("sim server is closed")
	}
	if s.started.Swap(true) {
		return fmt.Errorf("sim server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("sim listen %s: %w", s.cfg.Listen, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	mode := "synth"
	if s.records != nil {
		mode = "replay"
	}
	log.Printf("sim: serving station addr=%s mode=%s", ln.Addr(), mode)

	go func() {
		defer close(s.done)
		<-runCtx.Done()
		_ = ln.Close()
	}()
	go s.acceptLoop(runCtx, ln)
	return nil
}

func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.closed.Swap(true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Addr returns the bound listener address, valid after Start.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go s.serveClient(ctx, conn)
	}
}

func (s *Server) serveClient(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if s.records != nil {
		// A dead client surfaces as a write error, which stops playback.
		_ = capture.Play(s.records, s.cfg.Replay.Speed, s.cfg.Replay.Loop, nil, func(frame []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := conn.Write(frame)
			return err
		})
		return
	}

	for {
		if _, err := conn.Write(s.frame); err != nil {
			return
		}
		t := time.NewTimer(s.cfg.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
