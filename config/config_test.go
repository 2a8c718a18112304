package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jd3nn1s/ecojuicer"
	"github.com/jd3nn1s/ecojuicer/gear"
	"github.com/jd3nn1s/ecojuicer/link"
	"github.com/jd3nn1s/ecojuicer/obd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, link.DefaultBaudRate, cfg.Link.Baud)
	assert.Equal(t, obd.DefaultReadTimeout, cfg.Link.ReadTimeout)
	assert.Equal(t, ecojuicer.DefaultPollInterval, cfg.Poll.Interval)
	assert.Equal(t, ecojuicer.DefaultErrorBackoff, cfg.Poll.ErrorBackoff)
	assert.Equal(t, gear.NewEstimator(), cfg.Estimator())
	assert.Equal(t, ecojuicer.DieselFuelModel(), cfg.FuelModel())
	assert.Equal(t, "", cfg.Metrics.Addr)
	assert.Equal(t, "trips.jsonl", cfg.Trips.File)
	assert.NoError(t, cfg.validate())
}

func TestLoadTOML(t *testing.T) {
	data := `
[link]
port = "/dev/ttyUSB0"
baud = 115200
read_timeout = "2s"

[poll]
interval = "250ms"

[vehicle]
final_drive_ratio = 4.1
gear_ratios = [3.5, 2.1, 1.4, 1.0, 0.8]

[fuel]
afr = 14.7
density_g_l = 745.0

[forwarder]
server = "127.0.0.1"
port = 5000

[can]
interface = "can0"

[metrics]
addr = ":9100"
`
	cfg, err := LoadReader(strings.NewReader(data), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Link.Port)
	assert.Equal(t, 115200, cfg.Link.Baud)
	assert.Equal(t, 2*time.Second, cfg.SessionOptions().ReadTimeout)
	assert.Equal(t, obd.DefaultWriteTimeout, cfg.SessionOptions().WriteTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, "can0", cfg.CAN.Interface)

	est := cfg.Estimator()
	assert.Equal(t, 4.1, est.FinalDriveRatio)
	assert.Equal(t, 0.6096, est.WheelDiameter)
	require.Len(t, est.Ratios, 5)
	assert.Equal(t, gear.Ratio{Gear: 5, Ratio: 0.8}, est.Ratios[4])

	fuel := cfg.FuelModel()
	assert.Equal(t, 14.7, fuel.AFR)
	assert.Equal(t, 745.0, fuel.DensityGL)
	assert.Equal(t, 1.7, fuel.IdleAFRMultiplier)

	udp := cfg.UDPConfig()
	assert.Equal(t, "127.0.0.1", udp.Server)
	assert.Equal(t, 5000, udp.Port)
	assert.Equal(t, 100*time.Millisecond, udp.Interval)

	opts := cfg.LinkOptions()
	assert.Equal(t, "serial:/dev/ttyUSB0", opts.String())
	assert.Equal(t, 115200, opts.BaudRate)

	settings := cfg.Settings(nil)
	assert.Equal(t, 250*time.Millisecond, settings.PollInterval)
	assert.Nil(t, settings.Metrics)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecojuicer.yaml")
	data := `
link:
  url: ws://192.168.0.10:81/obd
poll:
  error_backoff: 1s
trips:
  file: /var/lib/ecojuicer/trips.jsonl
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://192.168.0.10:81/obd", cfg.LinkOptions().String())
	assert.Equal(t, time.Second, cfg.Poll.ErrorBackoff)
	assert.Equal(t, ecojuicer.DefaultPollInterval, cfg.Poll.Interval)
	assert.Equal(t, "/var/lib/ecojuicer/trips.jsonl", cfg.Trips.File)
}

func TestLoadEmptyYAML(t *testing.T) {
	cfg, err := LoadReader(strings.NewReader(""), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "[link]\nspeed = 1\n"},
		{"bad url scheme", "[link]\nurl = \"http://bridge\"\n"},
		{"negative ratio", "[vehicle]\ngear_ratios = [3.5, -1.0]\n"},
		{"idle band", "[vehicle]\nidle_rpm_lower = 1200\nidle_rpm_upper = 900\n"},
		{"forwarder port", "[forwarder]\nserver = \"10.0.0.1\"\nport = 70000\n"},
		{"negative fuel", "[fuel]\nafr = -3.0\n"},
		{"syntax", "[link\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadReader(strings.NewReader(test.data), FormatTOML)
			assert.Error(t, err)
		})
	}
}
