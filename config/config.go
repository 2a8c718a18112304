// Package config loads the monitor configuration from a TOML or YAML file.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jd3nn1s/ecojuicer"
	"github.com/jd3nn1s/ecojuicer/forwarder"
	"github.com/jd3nn1s/ecojuicer/gear"
	"github.com/jd3nn1s/ecojuicer/link"
	"github.com/jd3nn1s/ecojuicer/obd"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

type Config struct {
	Link      LinkConfig      `toml:"link" yaml:"link"`
	Poll      PollConfig      `toml:"poll" yaml:"poll"`
	Vehicle   VehicleConfig   `toml:"vehicle" yaml:"vehicle"`
	Fuel      FuelConfig      `toml:"fuel" yaml:"fuel"`
	Forwarder ForwarderConfig `toml:"forwarder" yaml:"forwarder"`
	CAN       CANConfig       `toml:"can" yaml:"can"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
	Trips     TripsConfig     `toml:"trips" yaml:"trips"`
}

type LinkConfig struct {
	Port          string        `toml:"port" yaml:"port"`
	Baud          int           `toml:"baud" yaml:"baud"`
	Address       string        `toml:"address" yaml:"address"`
	URL           string        `toml:"url" yaml:"url"`
	SkipTLSVerify bool          `toml:"skip_tls_verify" yaml:"skip_tls_verify"`
	WriteTimeout  time.Duration `toml:"write_timeout" yaml:"write_timeout"`
	ReadTimeout   time.Duration `toml:"read_timeout" yaml:"read_timeout"`
}

type PollConfig struct {
	Interval     time.Duration `toml:"interval" yaml:"interval"`
	ErrorBackoff time.Duration `toml:"error_backoff" yaml:"error_backoff"`
}

// VehicleConfig describes the drivetrain. GearRatios lists the forward gears
// from first upwards.
type VehicleConfig struct {
	WheelDiameter      float64   `toml:"wheel_diameter_m" yaml:"wheel_diameter_m"`
	FinalDriveRatio    float64   `toml:"final_drive_ratio" yaml:"final_drive_ratio"`
	GearRatios         []float64 `toml:"gear_ratios" yaml:"gear_ratios"`
	IdleRPMLower       int       `toml:"idle_rpm_lower" yaml:"idle_rpm_lower"`
	IdleRPMUpper       int       `toml:"idle_rpm_upper" yaml:"idle_rpm_upper"`
	SpeedThreshold     float64   `toml:"speed_threshold_kmh" yaml:"speed_threshold_kmh"`
	RPMChangeThreshold int       `toml:"rpm_change_threshold" yaml:"rpm_change_threshold"`
}

type FuelConfig struct {
	AFR               float64 `toml:"afr" yaml:"afr"`
	IdleAFRMultiplier float64 `toml:"idle_afr_multiplier" yaml:"idle_afr_multiplier"`
	IdleRPM           int     `toml:"idle_rpm" yaml:"idle_rpm"`
	Density           float64 `toml:"density_g_l" yaml:"density_g_l"`
}

// ForwarderConfig enables the UDP forwarder when Server is set.
type ForwarderConfig struct {
	Server   string        `toml:"server" yaml:"server"`
	Port     int           `toml:"port" yaml:"port"`
	Interval time.Duration `toml:"interval" yaml:"interval"`
}

// CANConfig enables the dashboard display when Interface is set.
type CANConfig struct {
	Interface string `toml:"interface" yaml:"interface"`
}

// MetricsConfig enables the HTTP endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

type TripsConfig struct {
	File string `toml:"file" yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path, choosing the format from its extension.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open config %s", path)
	}
	defer f.Close()

	format := FormatTOML
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	cfg, err := LoadReader(f, format)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func LoadReader(r io.Reader, format Format) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config")
	}

	var cfg Config
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "unable to decode yaml")
		}
	default:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, errors.Wrap(err, "unable to decode toml")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("unknown key %s", undecoded[0])
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Link.Baud == 0 {
		c.Link.Baud = link.DefaultBaudRate
	}
	if c.Link.WriteTimeout == 0 {
		c.Link.WriteTimeout = obd.DefaultWriteTimeout
	}
	if c.Link.ReadTimeout == 0 {
		c.Link.ReadTimeout = obd.DefaultReadTimeout
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = ecojuicer.DefaultPollInterval
	}
	if c.Poll.ErrorBackoff == 0 {
		c.Poll.ErrorBackoff = ecojuicer.DefaultErrorBackoff
	}

	est := gear.NewEstimator()
	if c.Vehicle.WheelDiameter == 0 {
		c.Vehicle.WheelDiameter = est.WheelDiameter
	}
	if c.Vehicle.FinalDriveRatio == 0 {
		c.Vehicle.FinalDriveRatio = est.FinalDriveRatio
	}
	if len(c.Vehicle.GearRatios) == 0 {
		for _, r := range est.Ratios {
			c.Vehicle.GearRatios = append(c.Vehicle.GearRatios, r.Ratio)
		}
	}
	if c.Vehicle.IdleRPMLower == 0 {
		c.Vehicle.IdleRPMLower = est.IdleRPMLower
	}
	if c.Vehicle.IdleRPMUpper == 0 {
		c.Vehicle.IdleRPMUpper = est.IdleRPMUpper
	}
	if c.Vehicle.SpeedThreshold == 0 {
		c.Vehicle.SpeedThreshold = est.SpeedThreshold
	}
	if c.Vehicle.RPMChangeThreshold == 0 {
		c.Vehicle.RPMChangeThreshold = est.RPMChangeThreshold
	}

	fuel := ecojuicer.DieselFuelModel()
	if c.Fuel.AFR == 0 {
		c.Fuel.AFR = fuel.AFR
	}
	if c.Fuel.IdleAFRMultiplier == 0 {
		c.Fuel.IdleAFRMultiplier = fuel.IdleAFRMultiplier
	}
	if c.Fuel.IdleRPM == 0 {
		c.Fuel.IdleRPM = fuel.IdleRPM
	}
	if c.Fuel.Density == 0 {
		c.Fuel.Density = fuel.DensityGL
	}

	if c.Forwarder.Interval == 0 {
		c.Forwarder.Interval = forwarder.DefaultInterval
	}
	if c.Trips.File == "" {
		c.Trips.File = "trips.jsonl"
	}
}

func (c *Config) validate() error {
	if c.Link.Baud < 0 {
		return errors.New("link.baud must be positive")
	}
	if c.Link.URL != "" && !strings.HasPrefix(c.Link.URL, "ws://") && !strings.HasPrefix(c.Link.URL, "wss://") {
		return errors.Errorf("link.url %q must use ws:// or wss://", c.Link.URL)
	}
	if c.Poll.Interval < 0 || c.Poll.ErrorBackoff < 0 {
		return errors.New("poll intervals must not be negative")
	}
	if c.Vehicle.WheelDiameter <= 0 || c.Vehicle.FinalDriveRatio <= 0 {
		return errors.New("vehicle.wheel_diameter_m and vehicle.final_drive_ratio must be positive")
	}
	for i, r := range c.Vehicle.GearRatios {
		if r <= 0 {
			return errors.Errorf("vehicle.gear_ratios[%d] must be positive", i)
		}
	}
	if c.Vehicle.IdleRPMLower > c.Vehicle.IdleRPMUpper {
		return errors.New("vehicle.idle_rpm_lower must not exceed vehicle.idle_rpm_upper")
	}
	if c.Fuel.AFR <= 0 || c.Fuel.IdleAFRMultiplier <= 0 || c.Fuel.Density <= 0 {
		return errors.New("fuel.afr, fuel.idle_afr_multiplier and fuel.density_g_l must be positive")
	}
	if c.Forwarder.Server != "" && (c.Forwarder.Port <= 0 || c.Forwarder.Port > 65535) {
		return errors.Errorf("forwarder.port %d out of range", c.Forwarder.Port)
	}
	return nil
}

func (c *Config) LinkOptions() link.Options {
	return link.Options{
		Port:          c.Link.Port,
		BaudRate:      c.Link.Baud,
		Address:       c.Link.Address,
		URL:           c.Link.URL,
		SkipTLSVerify: c.Link.SkipTLSVerify,
	}
}

func (c *Config) SessionOptions() obd.SessionOptions {
	return obd.SessionOptions{
		WriteTimeout: c.Link.WriteTimeout,
		ReadTimeout:  c.Link.ReadTimeout,
	}
}

func (c *Config) Estimator() *gear.Estimator {
	ratios := make([]gear.Ratio, 0, len(c.Vehicle.GearRatios))
	for i, r := range c.Vehicle.GearRatios {
		ratios = append(ratios, gear.Ratio{Gear: i + 1, Ratio: r})
	}
	return &gear.Estimator{
		WheelDiameter:      c.Vehicle.WheelDiameter,
		FinalDriveRatio:    c.Vehicle.FinalDriveRatio,
		IdleRPMLower:       c.Vehicle.IdleRPMLower,
		IdleRPMUpper:       c.Vehicle.IdleRPMUpper,
		SpeedThreshold:     c.Vehicle.SpeedThreshold,
		RPMChangeThreshold: c.Vehicle.RPMChangeThreshold,
		Ratios:             ratios,
	}
}

func (c *Config) FuelModel() ecojuicer.FuelModel {
	return ecojuicer.FuelModel{
		AFR:               c.Fuel.AFR,
		IdleAFRMultiplier: c.Fuel.IdleAFRMultiplier,
		IdleRPM:           c.Fuel.IdleRPM,
		DensityGL:         c.Fuel.Density,
	}
}

// Settings builds the polling settings. metrics may be nil.
func (c *Config) Settings(metrics *ecojuicer.Metrics) ecojuicer.Settings {
	return ecojuicer.Settings{
		PollInterval: c.Poll.Interval,
		ErrorBackoff: c.Poll.ErrorBackoff,
		Estimator:    c.Estimator(),
		Fuel:         c.FuelModel(),
		Metrics:      metrics,
	}
}

func (c *Config) UDPConfig() forwarder.UDPConfig {
	return forwarder.UDPConfig{
		Server:   c.Forwarder.Server,
		Port:     c.Forwarder.Port,
		Interval: c.Forwarder.Interval,
	}
}
