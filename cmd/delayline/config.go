package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/matst80/delayline/internal/config"
	"github.com/matst80/delayline/internal/delay"
)

// Config holds all runtime configuration: ambient options from flags and the
// optional settings file, plus the positional startup parameters.
type Config struct {
	Host        string
	ChunkSize   int
	MetricsAddr string
	Debug       bool
	ConfigFile  string

	IncomingPort int
	OutgoingPort int
	InitialDelay time.Duration
	AdminPort    int // 0 = admin mode disabled
}

var cfg Config

// init registers flags into the global flag set; loadConfig parses and merges.
func init() {
	flag.StringVar(&cfg.Host, "host", "", "backend host to dial (default 127.0.0.1)")
	flag.IntVar(&cfg.ChunkSize, "chunk", 0, "max bytes per forwarded read (default 1024)")
	flag.StringVar(&cfg.MetricsAddr, "metrics", "", "metrics and health listen address (empty disables)")
	flag.StringVar(&cfg.ConfigFile, "config", "", "optional YAML settings file")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logs")
	flag.Usage = usage
}

func usage() {
	fmt.Fprintln(flag.CommandLine.Output(), "usage: delayline [flags] <incoming_port> <outgoing_port> <delay_ms> [admin_port|none]")
	flag.PrintDefaults()
}

// loadConfig parses flags, loads the optional settings file and applies the
// positional arguments. Precedence: positional args and explicit flags win
// over the file, which wins over built-in defaults.
func loadConfig() error {
	flag.Parse()
	file := &config.File{}
	file.Normalize()
	if cfg.ConfigFile != "" {
		loaded, err := config.Load(cfg.ConfigFile)
		if err != nil {
			return err
		}
		file = loaded
	}
	if cfg.Host == "" {
		cfg.Host = file.Host
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = file.ChunkSize
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = file.MetricsAddr
	}
	if file.Debug {
		cfg.Debug = true
	}
	return parseArgs(&cfg, flag.Args(), file.DelayMs)
}

// parseArgs applies the positional startup parameters
//
//	incoming_port outgoing_port delay_ms [admin_port|none]
//
// delay_ms may be omitted when the settings file provides one. The admin port
// accepts the literal sentinel "none" (any case) or 0 to disable admin mode.
func parseArgs(c *Config, args []string, fileDelayMs *float64) error {
	if len(args) < 2 || len(args) > 4 {
		return fmt.Errorf("expected incoming_port outgoing_port delay_ms [admin_port|none], got %d arguments", len(args))
	}
	var err error
	if c.IncomingPort, err = parsePort(args[0], "incoming_port"); err != nil {
		return err
	}
	if c.OutgoingPort, err = parsePort(args[1], "outgoing_port"); err != nil {
		return err
	}
	if len(args) < 3 {
		if fileDelayMs == nil {
			return fmt.Errorf("delay_ms is required (no delay_ms in settings file)")
		}
		c.InitialDelay = delay.FromMillis(*fileDelayMs)
		return nil
	}
	ms, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("delay_ms must be a number, got %q", args[2])
	}
	if ms < 0 {
		return fmt.Errorf("delay_ms must be non-negative, got %v", ms)
	}
	c.InitialDelay = delay.FromMillis(ms)
	if len(args) == 4 {
		if strings.EqualFold(args[3], "none") || args[3] == "0" {
			c.AdminPort = 0
			return nil
		}
		if c.AdminPort, err = parsePort(args[3], "admin_port"); err != nil {
			return err
		}
	}
	return nil
}

func parsePort(s, name string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return 0, fmt.Errorf("%s must be a port number between 1 and 65535, got %q", name, s)
	}
	return p, nil
}
