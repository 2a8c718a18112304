package cmd

import (
	"github.com/jd3nn1s/ecojuicer/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	tripsFile  string

	// adapter link flags, override the config file
	portName      string
	baudRate      int
	address       string
	wsURL         string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "ecojuicer",
	Short: "OBD-II trip telemetry and driving efficiency",
	Long: `ecojuicer polls an ELM327 compatible OBD-II adapter, turns the responses into
live trip telemetry and scores finished trips for driving efficiency.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 38400]
  TCP:       --address 192.168.0.10:35000
  WebSocket: --url ws://host/path`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return errors.Wrapf(err, "invalid log level %q", logLevel)
		}
		log.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (.toml or .yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level")
	rootCmd.PersistentFlags().StringVarP(&tripsFile, "trips-file", "t", "", "Trip history file (JSON lines)")

	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (serial only)")
	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", "", "Adapter TCP address (host:port)")
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("port") || flags.Changed("address") || flags.Changed("url") {
		cfg.Link.Port, cfg.Link.Address, cfg.Link.URL = portName, address, wsURL
	}
	if flags.Changed("baud") {
		cfg.Link.Baud = baudRate
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Link.SkipTLSVerify = wsNoSSLVerify
	}
	if flags.Changed("trips-file") {
		cfg.Trips.File = tripsFile
	}
	return cfg, nil
}
