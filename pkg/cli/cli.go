package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/dmdmdm-nz/tcpmond/pkg/version"
)

// Config holds the application configuration from CLI flags
type Config struct {
	Port     int
	Host     string
	PoolSize int
	LogLevel string
}

// ParseFlags parses command line arguments and returns a Config
func ParseFlags() *Config {
	cfg := &Config{}

	flag.IntVar(&cfg.Port, "port", 60106, "Port for the diagnostic API")
	flag.StringVar(&cfg.Host, "host", "127.0.0.1", "Host to bind the diagnostic API to")
	flag.IntVar(&cfg.PoolSize, "pool-size", 0, "Callback pool size per device (0 for default)")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Show version information")

	flag.Parse()

	if *showVersion {
		fmt.Printf("tcpmond version %s (commit: %s, built at: %s)\n",
			version.Version,
			version.CommitHash,
			version.BuildTime)
		os.Exit(0)
	}

	return cfg
}

// String returns a string representation of the Config
func (c *Config) String() string {
	return fmt.Sprintf("Host: %s, Port: %d, PoolSize: %d, LogLevel: %s", c.Host, c.Port, c.PoolSize, c.LogLevel)
}
