package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/config"
)

// options holds the command-line flags. Only flags the user set are
// applied on top of the file and environment configuration.
type options struct {
	configPath string

	mqttHost  string
	mqttPort  int
	mqttTopic string
	clientID  string

	user     string
	password string
	serial   string
	pollFreq int

	logLevel string
	syslog   bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "lightify2mqtt",
		Short: "Bridge between an OSRAM Lightify gateway and MQTT",
		Long: `lightify2mqtt polls the Lightify cloud for light states, publishes them
as retained messages under <topic>status/lights/<name> and turns messages
on <topic>set/lights/<name> into gateway commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	bindFlags(cmd, opts)
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	f.StringVar(&opts.mqttHost, "mqtt-host", "localhost", "MQTT server address")
	f.IntVar(&opts.mqttPort, "mqtt-port", 1883, "MQTT server port")
	f.StringVar(&opts.mqttTopic, "mqtt-topic", "lightify/", "Topic prefix used for subscribing and publishing")
	f.StringVar(&opts.clientID, "clientid", "lightify2mqtt", "Client ID prefix for the MQTT connection")
	f.StringVar(&opts.user, "user", "", "Lightify username")
	f.StringVar(&opts.password, "password", "", "Lightify password")
	f.StringVar(&opts.serial, "serial", "", "Lightify gateway serial (printed on the device, without suffix)")
	f.IntVar(&opts.pollFreq, "pollfreq", 30, "Polling interval in seconds")
	f.StringVar(&opts.logLevel, "log", "", "Log level: debug, info, warn or error (default warn)")
	f.BoolVar(&opts.syslog, "syslog", false, "Log to syslog")
}

// loadConfig builds the effective configuration: defaults, the optional
// YAML file, LIGHTIFY_* environment variables, then explicitly set flags.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	applyFlags(cmd, opts, cfg)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("mqtt-host") {
		cfg.MQTT.Broker.Host = opts.mqttHost
	}
	if changed("mqtt-port") {
		cfg.MQTT.Broker.Port = opts.mqttPort
	}
	if changed("mqtt-topic") {
		cfg.MQTT.TopicPrefix = opts.mqttTopic
	}
	if changed("clientid") {
		cfg.MQTT.Broker.ClientID = opts.clientID
	}
	if changed("user") {
		cfg.Lightify.Username = opts.user
	}
	if changed("password") {
		cfg.Lightify.Password = opts.password
	}
	if changed("serial") {
		cfg.Lightify.Serial = opts.serial
	}
	if changed("pollfreq") {
		cfg.Lightify.PollInterval = opts.pollFreq
	}
	if changed("log") {
		cfg.Logging.Level = opts.logLevel
	}
	if changed("syslog") && opts.syslog {
		cfg.Logging.Output = "syslog"
	}
}
