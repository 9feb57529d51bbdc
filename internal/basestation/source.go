package basestation

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// Source opens connections to the receiver's RTCM byte stream. The service
// holds at most one connection at a time and redials through the same
// source after any failure.
type Source interface {
	// Describe identifies the endpoint for logs and status output.
	Describe() string
	// Open establishes one connection. The caller owns the result.
	Open(ctx context.Context) (io.ReadCloser, error)
}

type tcpSource struct {
	addr        string
	dialTimeout time.Duration
}

func (s tcpSource) Describe() string {
	return "tcp://" + s.addr
}

func (s tcpSource) Open(ctx context.Context) (io.ReadCloser, error) {
	dialer := &net.Dialer{Timeout: s.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type serialSource struct {
	device string
	baud   int
}

func (s serialSource) Describe() string {
	return fmt.Sprintf("serial://%s@%d", s.device, s.baud)
}

func (s serialSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return openSerial(s.device, s.baud)
}
