package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/takama/daemon"

	"gnssmon/internal/basestation"
	"gnssmon/internal/capture"
	"gnssmon/internal/config"
	"gnssmon/internal/mqtt"
	"gnssmon/internal/sim"
	"gnssmon/internal/stationcfg"
	"gnssmon/internal/svcctl"
	"gnssmon/internal/web"
)

const (
	serviceName        = "gnssmon"
	serviceDescription = "GNSS base-station monitor"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.Parse()

	// A trailing verb manages the system service instead of running it.
	if flag.NArg() > 0 {
		out, err := manage(flag.Arg(0), configPath)
		if err != nil {
			log.Fatalf("%s: %v", out, err)
		}
		fmt.Println(out)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logs := web.NewLogBuffer(2000)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logs); err != nil {
		log.Fatalf("gnssmon: %v", err)
	}
}

func manage(command, configPath string) (string, error) {
	srv, err := daemon.New(serviceName, serviceDescription, daemon.SystemDaemon)
	if err != nil {
		return "daemon init failed", err
	}
	switch command {
	case "install":
		return srv.Install("-config", configPath)
	case "remove":
		return srv.Remove()
	case "start":
		return srv.Start()
	case "stop":
		return srv.Stop()
	case "status":
		return srv.Status()
	default:
		return "Usage: " + serviceName + " [-config path] [install | remove | start | stop | status]", nil
	}
}

func run(ctx context.Context, cfg config.Config, logs *web.LogBuffer) error {
	startUTC := time.Now().UTC()
	log.Printf("gnssmon starting source=%s web=%s", cfg.Monitor.Source, cfg.Web.Listen)

	if cfg.Sim.Enable {
		station, err := sim.New(sim.Config{
			Listen:    cfg.Sim.Listen,
			Interval:  cfg.Sim.Interval,
			StationID: cfg.Sim.StationID,
			LatDeg:    cfg.Sim.LatDeg,
			LonDeg:    cfg.Sim.LonDeg,
			AltM:      cfg.Sim.AltM,
			Replay: sim.ReplayConfig{
				Path:  cfg.Sim.Replay.Path,
				Speed: cfg.Sim.Replay.Speed,
				Loop:  cfg.Sim.Replay.Loop,
			},
		})
		if err != nil {
			return fmt.Errorf("sim init: %w", err)
		}
		if err := station.Start(ctx); err != nil {
			return fmt.Errorf("sim start: %w", err)
		}
		defer station.Close()
		log.Printf("sim station listening on %s", station.Addr())
	}

	var recorder basestation.FrameRecorder
	if cfg.Monitor.Record.Enable {
		w, err := capture.Create(cfg.Monitor.Record.Path)
		if err != nil {
			return fmt.Errorf("capture create: %w", err)
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Printf("capture close failed err=%v", err)
			}
		}()
		recorder = w
		log.Printf("recording frames to %s", cfg.Monitor.Record.Path)
	}

	monitor, err := basestation.New(basestation.Config{
		Source:      cfg.Monitor.Source,
		Addr:        cfg.Monitor.Addr,
		Device:      cfg.Monitor.Device,
		Baud:        cfg.Monitor.Baud,
		Poll:        cfg.Monitor.Poll,
		DialTimeout: cfg.Monitor.DialTimeout,
		ReadChunk:   cfg.Monitor.ReadChunk,
		MaxBuffer:   cfg.Monitor.MaxBuffer,
	}, recorder)
	if err != nil {
		return fmt.Errorf("monitor init: %w", err)
	}
	if err := monitor.Start(ctx); err != nil {
		return fmt.Errorf("monitor start: %w", err)
	}
	defer monitor.Close()

	restarter, err := svcctl.New(svcctl.Config{
		Unit:    cfg.Station.ServiceUnit,
		User:    cfg.Station.ServiceUser,
		Timeout: cfg.Station.RestartTimeout,
	})
	if err != nil {
		return fmt.Errorf("svcctl init: %w", err)
	}

	if cfg.MQTT.Enable {
		publisher, err := mqtt.New(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Interval: cfg.MQTT.Interval,
		}, func() any { return monitor.Snapshot() })
		if err != nil {
			return fmt.Errorf("mqtt init: %w", err)
		}
		if err := publisher.Start(ctx); err != nil {
			return fmt.Errorf("mqtt start: %w", err)
		}
		defer publisher.Close()
	}

	deps := web.Deps{
		Monitor:   monitor,
		Settings:  stationcfg.Store{Path: cfg.Station.ConfigPath},
		Locations: stationcfg.Locations{Path: cfg.Station.LocationsPath},
		Restarter: restarter,
		Logs:      logs,
		StartUTC:  startUTC,
	}

	log.Printf("web listening on %s", cfg.Web.Listen)
	err = web.Serve(ctx, cfg.Web.Listen, deps)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Printf("gnssmon stopping")
	return nil
}
