// Package mqtt publishes the monitor snapshot to a broker so dashboards and
// farm-side automation can follow the base station without polling HTTP.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type Config struct {
	Broker   string
	Topic    string
	ClientID string
	Interval time.Duration
}

// Snapshotter supplies the value published on each interval.
type Snapshotter func() any

// client is the slice of paho.Client the publisher needs; tests fake it.
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

const tokenTimeout = 5 * time.Second

type Publisher struct {
	cfg      Config
	client   client
	snapshot Snapshotter

	started atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(cfg Config, snapshot Snapshotter) (*Publisher, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("mqtt topic is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "gnssmon"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Second
	}
	if snapshot == nil {
		return nil, fmt.Errorf("mqtt snapshotter is nil")
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)

	return &Publisher{
		cfg:      cfg,
		client:   paho.NewClient(opts),
		snapshot: snapshot,
		done:     make(chan struct{}),
	}, nil
}

func (p *Publisher) Start(ctx context.Context) error {
	if p == nil {
		return fmt.Errorf("mqtt publisher is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	if p.closed.Load() {
		return fmt.Errorf("mqtt publisher is closed")
	}
	if p.started.Swap(true) {
		return fmt.Errorf("mqtt publisher already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	log.Printf("mqtt: publishing broker=%s topic=%s interval=%s", p.cfg.Broker, p.cfg.Topic, p.cfg.Interval)
	go func() {
		defer close(p.done)
		p.run(runCtx)
	}()
	return nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.closed.Swap(true) {
		return
	}
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

func (p *Publisher) run(ctx context.Context) {
	defer p.client.Disconnect(250)

	connected := false
	for {
		if !connected {
			t := p.client.Connect()
			if t.WaitTimeout(tokenTimeout) && t.Error() == nil {
				connected = true
				log.Printf("mqtt: connected broker=%s", p.cfg.Broker)
			} else {
				log.Printf("mqtt: connect failed broker=%s: %v", p.cfg.Broker, t.Error())
			}
		}

		if connected {
			p.publishOnce()
		}

		if !sleepCtx(ctx, p.cfg.Interval) {
			return
		}
	}
}

// publishOnce sends one retained snapshot. Failures are logged, never
// fatal; the auto-reconnect keeps the session alive underneath.
func (p *Publisher) publishOnce() {
	payload, err := json.Marshal(p.snapshot())
	if err != nil {
		log.Printf("mqtt: snapshot marshal failed: %v", err)
		return
	}
	t := p.client.Publish(p.cfg.Topic, 0, true, payload)
	if !t.WaitTimeout(tokenTimeout) {
		log.Printf("mqtt: publish timed out topic=%s", p.cfg.Topic)
		return
	}
	if err := t.Error(); err != nil {
		log.Printf("mqtt: publish failed topic=%s: %v", p.cfg.Topic, err)
	}
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
