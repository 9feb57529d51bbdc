package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_RequiresAddrForTCP(t *testing.T) {
	path := writeTempConfig(t, "monitor: {}\n")
	_, err := Load(path)
	requireErrEq(t, err, "monitor.addr is required when monitor.source is tcp")
}

func TestLoad_RequiresDeviceForSerial(t *testing.T) {
	path := writeTempConfig(t, "monitor:\n  source: serial\n")
	_, err := Load(path)
	requireErrEq(t, err, "monitor.device is required when monitor.source is serial")
}

func TestLoad_RejectsUnknownSource(t *testing.T) {
	path := writeTempConfig(t, "monitor:\n  source: ntrip\n  addr: 'localhost:50010'\n")
	_, err := Load(path)
	requireErrEq(t, err, `monitor.source must be tcp or serial, got "ntrip"`)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "monitor:\n  addr: 'localhost:50010'\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Monitor.Source != "tcp" {
		t.Fatalf("source=%q want tcp", cfg.Monitor.Source)
	}
	if cfg.Monitor.Poll != 1*time.Second {
		t.Fatalf("poll=%s want 1s", cfg.Monitor.Poll)
	}
	if cfg.Monitor.DialTimeout != 2*time.Second {
		t.Fatalf("dial_timeout=%s want 2s", cfg.Monitor.DialTimeout)
	}
	if cfg.Monitor.ReadChunk != 1024 {
		t.Fatalf("read_chunk=%d want 1024", cfg.Monitor.ReadChunk)
	}
	if cfg.Monitor.MaxBuffer != 64*1024 {
		t.Fatalf("max_buffer=%d want 65536", cfg.Monitor.MaxBuffer)
	}

	if cfg.Station.ConfigPath != "/mnt/service_config/basestation.json" {
		t.Fatalf("config_path=%q", cfg.Station.ConfigPath)
	}
	if cfg.Station.LocationsPath != "/mnt/service_config/known-locations.json" {
		t.Fatalf("locations_path=%q", cfg.Station.LocationsPath)
	}
	if cfg.Station.ServiceUnit != "gnss-receiver.service" {
		t.Fatalf("service_unit=%q", cfg.Station.ServiceUnit)
	}
	if cfg.Station.RestartTimeout != 15*time.Second {
		t.Fatalf("restart_timeout=%s want 15s", cfg.Station.RestartTimeout)
	}

	if cfg.Web.Listen != ":8080" {
		t.Fatalf("web.listen=%q want :8080", cfg.Web.Listen)
	}

	if cfg.MQTT.Broker != "tcp://localhost:1883" || cfg.MQTT.Topic != "gnss/basestation/status" {
		t.Fatalf("mqtt defaults: broker=%q topic=%q", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}
	if cfg.MQTT.ClientID != "gnssmon" || cfg.MQTT.Interval != 1*time.Second {
		t.Fatalf("mqtt defaults: client_id=%q interval=%s", cfg.MQTT.ClientID, cfg.MQTT.Interval)
	}

	if cfg.Sim.Listen != "127.0.0.1:50010" || cfg.Sim.Interval != 1*time.Second {
		t.Fatalf("sim defaults: listen=%q interval=%s", cfg.Sim.Listen, cfg.Sim.Interval)
	}
	if cfg.Sim.Replay.Speed != 1 {
		t.Fatalf("sim.replay.speed=%v want 1", cfg.Sim.Replay.Speed)
	}
}

func TestLoad_SerialDefaultsBaud(t *testing.T) {
	path := writeTempConfig(t, "monitor:\n  source: serial\n  device: /dev/ttyACM0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Monitor.Baud != 115200 {
		t.Fatalf("baud=%d want 115200", cfg.Monitor.Baud)
	}
}

func TestLoad_RecordRequiresPath(t *testing.T) {
	path := writeTempConfig(t, "monitor:\n  addr: 'localhost:50010'\n  record:\n    enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "monitor.record.path is required when monitor.record.enable is true")
}

func TestLoad_SimValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "NegativeReplaySpeed",
			body: "monitor:\n  addr: 'x:1'\nsim:\n  replay:\n    speed: -2\n",
			want: "sim.replay.speed must be > 0",
		},
		{
			name: "LatitudeOutOfRange",
			body: "monitor:\n  addr: 'x:1'\nsim:\n  enable: true\n  lat_deg: 91\n",
			want: "sim.lat_deg must be within [-90, 90]",
		},
		{
			name: "LongitudeOutOfRange",
			body: "monitor:\n  addr: 'x:1'\nsim:\n  enable: true\n  lon_deg: -200\n",
			want: "sim.lon_deg must be within [-180, 180]",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.body))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_FullConfigRoundTrip(t *testing.T) {
	body := `monitor:
  source: tcp
  addr: "localhost:50010"
  poll: 250ms
  dial_timeout: 5s
  read_chunk: 4096
  max_buffer: 131072
  record:
    enable: true
    path: /tmp/frames.log
station:
  config_path: /tmp/basestation.json
  locations_path: /tmp/known-locations.json
  service_unit: farmng-gps.service
  service_user: farmer
  restart_timeout: 30s
web:
  listen: ":9000"
mqtt:
  enable: true
  broker: tcp://broker:1883
  topic: farm/base/status
  client_id: base-7
  interval: 5s
sim:
  enable: true
  listen: "127.0.0.1:50011"
  interval: 200ms
  station_id: 2003
  lat_deg: 37.4192
  lon_deg: -122.057
  alt_m: 10
`
	cfg, err := Load(writeTempConfig(t, body))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Monitor.Poll != 250*time.Millisecond || cfg.Monitor.ReadChunk != 4096 {
		t.Fatalf("monitor not honored: %+v", cfg.Monitor)
	}
	if !cfg.Monitor.Record.Enable || cfg.Monitor.Record.Path != "/tmp/frames.log" {
		t.Fatalf("record not honored: %+v", cfg.Monitor.Record)
	}
	if cfg.Station.ServiceUser != "farmer" || cfg.Station.RestartTimeout != 30*time.Second {
		t.Fatalf("station not honored: %+v", cfg.Station)
	}
	if !cfg.MQTT.Enable || cfg.MQTT.Interval != 5*time.Second {
		t.Fatalf("mqtt not honored: %+v", cfg.MQTT)
	}
	if cfg.Sim.StationID != 2003 || cfg.Sim.LatDeg != 37.4192 {
		t.Fatalf("sim not honored: %+v", cfg.Sim)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
