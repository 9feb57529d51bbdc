package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
	Station StationConfig `yaml:"station"`
	Web     WebConfig     `yaml:"web"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Sim     SimConfig     `yaml:"sim"`
}

type MonitorConfig struct {
	// Source selects the stream transport: "tcp" (default) or "serial".
	Source string `yaml:"source"`
	Addr   string `yaml:"addr"`
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`

	Poll        time.Duration `yaml:"poll"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	ReadChunk   int           `yaml:"read_chunk"`
	MaxBuffer   int           `yaml:"max_buffer"`

	Record RecordConfig `yaml:"record"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type StationConfig struct {
	ConfigPath     string        `yaml:"config_path"`
	LocationsPath  string        `yaml:"locations_path"`
	ServiceUnit    string        `yaml:"service_unit"`
	ServiceUser    string        `yaml:"service_user"`
	RestartTimeout time.Duration `yaml:"restart_timeout"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type MQTTConfig struct {
	Enable   bool          `yaml:"enable"`
	Broker   string        `yaml:"broker"`
	Topic    string        `yaml:"topic"`
	ClientID string        `yaml:"client_id"`
	Interval time.Duration `yaml:"interval"`
}

type SimConfig struct {
	Enable    bool          `yaml:"enable"`
	Listen    string        `yaml:"listen"`
	Interval  time.Duration `yaml:"interval"`
	StationID uint16        `yaml:"station_id"`
	LatDeg    float64       `yaml:"lat_deg"`
	LonDeg    float64       `yaml:"lon_deg"`
	AltM      float64       `yaml:"alt_m"`
	Replay    ReplayConfig  `yaml:"replay"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills in defaults and rejects configs the services
// would refuse at startup.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	cfg.Monitor.Source = strings.ToLower(strings.TrimSpace(cfg.Monitor.Source))
	if cfg.Monitor.Source == "" {
		cfg.Monitor.Source = "tcp"
	}
	switch cfg.Monitor.Source {
	case "tcp":
		if strings.TrimSpace(cfg.Monitor.Addr) == "" {
			return fmt.Errorf("monitor.addr is required when monitor.source is tcp")
		}
	case "serial":
		if strings.TrimSpace(cfg.Monitor.Device) == "" {
			return fmt.Errorf("monitor.device is required when monitor.source is serial")
		}
		if cfg.Monitor.Baud <= 0 {
			cfg.Monitor.Baud = 115200
		}
	default:
		return fmt.Errorf("monitor.source must be tcp or serial, got %q", cfg.Monitor.Source)
	}
	if cfg.Monitor.Poll <= 0 {
		cfg.Monitor.Poll = 1 * time.Second
	}
	if cfg.Monitor.DialTimeout <= 0 {
		cfg.Monitor.DialTimeout = 2 * time.Second
	}
	if cfg.Monitor.ReadChunk <= 0 {
		cfg.Monitor.ReadChunk = 1024
	}
	if cfg.Monitor.MaxBuffer <= 0 {
		cfg.Monitor.MaxBuffer = 64 * 1024
	}
	if cfg.Monitor.Record.Enable && strings.TrimSpace(cfg.Monitor.Record.Path) == "" {
		return fmt.Errorf("monitor.record.path is required when monitor.record.enable is true")
	}

	if cfg.Station.ConfigPath == "" {
		cfg.Station.ConfigPath = "/mnt/service_config/basestation.json"
	}
	if cfg.Station.LocationsPath == "" {
		cfg.Station.LocationsPath = "/mnt/service_config/known-locations.json"
	}
	if cfg.Station.ServiceUnit == "" {
		cfg.Station.ServiceUnit = "gnss-receiver.service"
	}
	if cfg.Station.RestartTimeout <= 0 {
		cfg.Station.RestartTimeout = 15 * time.Second
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "tcp://localhost:1883"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "gnss/basestation/status"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "gnssmon"
	}
	if cfg.MQTT.Interval <= 0 {
		cfg.MQTT.Interval = 1 * time.Second
	}

	if cfg.Sim.Listen == "" {
		cfg.Sim.Listen = "127.0.0.1:50010"
	}
	if cfg.Sim.Interval <= 0 {
		cfg.Sim.Interval = 1 * time.Second
	}
	if cfg.Sim.Replay.Speed == 0 {
		cfg.Sim.Replay.Speed = 1
	}
	if cfg.Sim.Replay.Speed < 0 {
		return fmt.Errorf("sim.replay.speed must be > 0")
	}
	if cfg.Sim.Enable {
		if cfg.Sim.Replay.Path == "" {
			if cfg.Sim.LatDeg < -90 || cfg.Sim.LatDeg > 90 {
				return fmt.Errorf("sim.lat_deg must be within [-90, 90]")
			}
			if cfg.Sim.LonDeg < -180 || cfg.Sim.LonDeg > 180 {
				return fmt.Errorf("sim.lon_deg must be within [-180, 180]")
			}
		}
	}

	return nil
}
