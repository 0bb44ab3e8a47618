package main

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds the command-line-level knobs; everything else in
// config.Config is reached through the config file and RS_ environment
// variables (see config.Loader). Grounded on the teacher's
// cmd/semstreams/flags.go CLIConfig/parseFlags/getEnv* shape.
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration

	RingDir         string
	MaxClients      int
	MaxClientsPerIP int
	ClientTimeout   time.Duration
	ServerID        string
	AdminAddr       string

	ShowVersion bool
	ShowHelp    bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("RS_CONFIG_FILE", ""),
		"Path to configuration file (env: RS_CONFIG_FILE)")
	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("RS_CONFIG_FILE", ""),
		"Path to configuration file (env: RS_CONFIG_FILE)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("RS_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: RS_LOG_LEVEL)")
	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("RS_LOG_FORMAT", "json"),
		"Log format: json, text (env: RS_LOG_FORMAT)")
	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("RS_DEBUG", false),
		"Enable debug logging (env: RS_DEBUG)")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("RS_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Deadline to force-join units still running at shutdown (env: RS_SHUTDOWN_TIMEOUT)")

	flag.StringVar(&cfg.RingDir, "ring-dir", "", "Ring storage directory, overrides config file (env: RS_RING_DIR)")
	flag.IntVar(&cfg.MaxClients, "max-clients", 0, "Max concurrent clients, 0 leaves the config file's value")
	flag.IntVar(&cfg.MaxClientsPerIP, "max-clients-per-ip", 0, "Max concurrent clients per source IP, 0 leaves the config file's value")
	flag.DurationVar(&cfg.ClientTimeout, "client-timeout", 0, "Idle client timeout, 0 leaves the config file's value")
	flag.StringVar(&cfg.ServerID, "server-id", "", "Server identifier, overrides config file")
	flag.StringVar(&cfg.AdminAddr, "admin-addr", "", "Admin HTTP listen address, overrides config file")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	flag.Usage = printDetailedHelp

	flag.Parse()

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func printDetailedHelp() {
	flag.CommandLine.SetOutput(os.Stderr)
	_, _ = os.Stderr.WriteString(appName + " " + Version + "\n\n")
	flag.PrintDefaults()
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
