package basestation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gnssmon/internal/geodesy"
	"gnssmon/internal/rtcm"
)

const (
	stateDisconnected = "disconnected"
	stateConnected    = "connected"
)

// readDeadline bounds a single poll read so a quiet socket cannot stall the
// loop; a deadline expiry is "no data this cycle", not an error.
const readDeadline = 200 * time.Millisecond

// Config controls the monitor.
type Config struct {
	// Source selects the stream transport: "tcp" (default) or "serial".
	Source string

	// Addr is host:port for Source=="tcp".
	Addr string

	// Device and Baud configure Source=="serial".
	Device string
	Baud   int

	Poll        time.Duration
	DialTimeout time.Duration
	ReadChunk   int
	MaxBuffer   int
}

// FrameRecorder receives every accepted frame. The capture writer satisfies
// it; nil disables recording.
type FrameRecorder interface {
	Append(now time.Time, frame []byte) error
}

// Service owns the connection to the receiver, the accumulation buffer and
// the status snapshot. One goroutine polls the source, drains complete
// frames and decodes station positions; everything else reads snapshots.
type Service struct {
	cfg      Config
	source   Source
	recorder FrameRecorder

	started atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	mu        sync.RWMutex
	state     string
	lastErr   string
	lastFrame time.Time
	status    Status
	hasPos    bool
	stationID uint16

	frames      uint64
	positions   uint64
	decodeFails uint64
	resyncBytes uint64
	readErrors  uint64
	connects    uint64

	watchMu  sync.Mutex
	watchers map[int]chan Snapshot
	nextID   int
}

// New builds a monitor for the configured source.
func New(cfg Config, recorder FrameRecorder) (*Service, error) {
	src := strings.ToLower(strings.TrimSpace(cfg.Source))
	if src == "" {
		src = "tcp"
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 1 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadChunk <= 0 {
		cfg.ReadChunk = 1024
	}
	if cfg.MaxBuffer <= 0 {
		cfg.MaxBuffer = 64 * 1024
	}

	var source Source
	switch src {
	case "tcp":
		addr := strings.TrimSpace(cfg.Addr)
		if addr == "" {
			return nil, fmt.Errorf("monitor addr is required for the tcp source")
		}
		source = tcpSource{addr: addr, dialTimeout: cfg.DialTimeout}
	case "serial":
		device := strings.TrimSpace(cfg.Device)
		if device == "" {
			return nil, fmt.Errorf("monitor device is required for the serial source")
		}
		baud := cfg.Baud
		if baud == 0 {
			baud = 115200
		}
		source = serialSource{device: device, baud: baud}
	default:
		return nil, fmt.Errorf("unknown monitor source %q", src)
	}
	return newWithSource(cfg, source, recorder), nil
}

func newWithSource(cfg Config, source Source, recorder FrameRecorder) *Service {
	return &Service{
		cfg:      cfg,
		source:   source,
		recorder: recorder,
		state:    stateDisconnected,
		done:     make(chan struct{}),
		watchers: make(map[int]chan Snapshot),
	}
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("basestation service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	if s.closed.Load() {
		return fmt.Errorf("basestation service is closed")
	}
	if s.started.Swap(true) {
		return fmt.Errorf("basestation service already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	log.Printf("basestation: starting source=%s poll=%s", s.source.Describe(), s.cfg.Poll)
	go func() {
		defer close(s.done)
		s.run(runCtx)
	}()
	return nil
}

func (s *Service) Close() {
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

// Status returns the current position snapshot; the zero value means no
// position has been decoded yet.
func (s *Service) Status() Status {
	if s == nil {
		return Status{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Snapshot returns the full diagnostics view.
func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:               s.state,
		Source:              s.source.Describe(),
		Status:              s.status,
		HasPosition:         s.hasPos,
		StationID:           s.stationID,
		LastError:           s.lastErr,
		FramesTotal:         s.frames,
		PositionsTotal:      s.positions,
		DecodeFailuresTotal: s.decodeFails,
		ResyncBytesTotal:    s.resyncBytes,
		ReadErrorsTotal:     s.readErrors,
		ConnectsTotal:       s.connects,
	}
	if !s.lastFrame.IsZero() {
		snap.LastFrameUTC = s.lastFrame.UTC().Format(time.RFC3339Nano)
	}
	return snap
}

// Watch registers a listener that receives a snapshot after every poll tick,
// starting with the current one. Sends never block; a slow listener drops
// ticks. Unwatch closes the channel.
func (s *Service) Watch(buffer int) (int, <-chan Snapshot) {
	if s == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan Snapshot, buffer)
	s.watchMu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.watchMu.Unlock()

	select {
	case ch <- s.Snapshot():
	default:
	}
	return id, ch
}

func (s *Service) Unwatch(id int) {
	if s == nil {
		return
	}
	s.watchMu.Lock()
	ch, ok := s.watchers[id]
	if ok {
		delete(s.watchers, id)
		close(ch)
	}
	s.watchMu.Unlock()
}

func (s *Service) run(ctx context.Context) {
	var conn io.ReadCloser
	var buf arena
	chunk := make([]byte, s.cfg.ReadChunk)

	defer func() {
		if conn != nil {
			_ = conn.Close()
		}
		metricConnected.Set(0)
	}()

	for {
		if conn == nil {
			c, err := s.source.Open(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.setState(stateDisconnected, fmt.Sprintf("connect failed: %v", err))
			} else {
				conn = c
				s.mu.Lock()
				s.connects++
				s.mu.Unlock()
				metricConnects.Inc()
				metricConnected.Set(1)
				s.setState(stateConnected, "")
				log.Printf("basestation: connected source=%s", s.source.Describe())
			}
		}

		if conn != nil {
			n, err := readOnce(conn, chunk)
			if err != nil {
				_ = conn.Close()
				conn = nil
				s.mu.Lock()
				s.readErrors++
				s.mu.Unlock()
				metricReadErrors.Inc()
				metricConnected.Set(0)
				s.setState(stateDisconnected, fmt.Sprintf("read failed: %v", err))
				log.Printf("basestation: disconnected source=%s: %v", s.source.Describe(), err)
			} else if n > 0 {
				buf.append(chunk[:n])
				s.drain(&buf)
			}
		}

		s.publish()

		if !sleepCtx(ctx, s.cfg.Poll) {
			return
		}
	}
}

// readOnce performs one bounded read. Zero bytes with a nil error means no
// data arrived this cycle.
func readOnce(conn io.Reader, chunk []byte) (int, error) {
	if d, ok := conn.(interface{ SetReadDeadline(time.Time) error }); ok {
		_ = d.SetReadDeadline(time.Now().Add(readDeadline))
	}
	n, err := conn.Read(chunk)
	if err != nil {
		var ne net.Error
		if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

// drain extracts as many complete frames as the buffer holds. An invalid
// start costs exactly one discarded byte before retrying; an incomplete
// frame stops the pass with nothing consumed.
func (s *Service) drain(buf *arena) {
	for buf.len() > 0 {
		f, n, err := rtcm.Extract(buf.pending())
		if err != nil {
			buf.advance(1)
			s.mu.Lock()
			s.resyncBytes++
			s.mu.Unlock()
			metricResyncBytes.Inc()
			continue
		}
		if n == 0 {
			break
		}
		s.handleFrame(f)
		buf.advance(n)
	}

	if dropped := buf.cap(s.cfg.MaxBuffer); dropped > 0 {
		s.mu.Lock()
		s.resyncBytes += uint64(dropped)
		s.mu.Unlock()
		metricResyncBytes.Add(float64(dropped))
		log.Printf("basestation: buffer over %d bytes, dropped oldest %d", s.cfg.MaxBuffer, dropped)
	}
	buf.compact()
}

func (s *Service) handleFrame(f rtcm.Frame) {
	now := time.Now().UTC()
	metricFrames.WithLabelValues(frameTypeLabel(f.Type)).Inc()
	s.mu.Lock()
	s.frames++
	s.lastFrame = now
	s.mu.Unlock()

	if s.recorder != nil {
		if err := s.recorder.Append(now, f.Raw); err != nil {
			log.Printf("basestation: capture append failed: %v", err)
		}
	}

	// Every other message type is consumed and counted, never decoded.
	if f.Type != rtcm.TypeStationARP {
		return
	}

	arp, err := rtcm.DecodeStationARP(f.Payload)
	if err != nil {
		s.mu.Lock()
		s.decodeFails++
		s.lastErr = err.Error()
		s.mu.Unlock()
		metricDecodeFailures.Inc()
		log.Printf("basestation: station position decode failed: %v", err)
		return
	}

	lat, lon, alt := geodesy.ECEFToGeodetic(arp.X, arp.Y, arp.Z)
	s.mu.Lock()
	s.status.Latitude = geodesy.Round(lat, 8)
	s.status.Longitude = geodesy.Round(lon, 8)
	s.status.Altitude = geodesy.Round(alt, 2)
	s.hasPos = true
	s.stationID = arp.StationID
	s.positions++
	s.mu.Unlock()
	metricPositions.Inc()
}

func (s *Service) publish() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	s.mu.RUnlock()

	s.watchMu.Lock()
	for _, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
	s.watchMu.Unlock()
}

func (s *Service) setState(state, lastErr string) {
	s.mu.Lock()
	s.state = state
	if lastErr != "" {
		s.lastErr = lastErr
	} else if state == stateConnected {
		s.lastErr = ""
	}
	s.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
