// Package config loads probe settings from dotenv files and the environment.
//
// Every setting has a default, so a probe started with no configuration at
// all dials ws://127.0.0.1:9111/ot/ with the http-only subprotocol and logs
// in as test/test.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/qntx/otprobe/command"
)

// --------------------------------------------------------------------------------
// Constants

// Defaults used when a variable is unset.
const (
	DefaultURL          = "ws://127.0.0.1:9111/ot/"
	DefaultSubprotocol  = "http-only"
	DefaultUsername     = "test"
	DefaultPassword     = "test"
	DefaultTimeout      = 30 * time.Second
	DefaultCloseTimeout = 2 * time.Second
	DefaultLogLevel     = "info"
	DefaultDotenvFile   = ".env"
	defaultListSep      = ","
	defaultPingInterval = 0
)

// Environment variable names.
const (
	EnvURL          = "OTPROBE_URL"
	EnvSubprotocols = "OTPROBE_SUBPROTOCOLS"
	EnvUsername     = "OTPROBE_USERNAME"
	EnvPassword     = "OTPROBE_PASSWORD"
	EnvCommands     = "OTPROBE_COMMANDS"
	EnvTimeout      = "OTPROBE_TIMEOUT"
	EnvCloseTimeout = "OTPROBE_CLOSE_TIMEOUT"
	EnvPingInterval = "OTPROBE_PING_INTERVAL"
	EnvReadLimit    = "OTPROBE_READ_LIMIT"
	EnvLogLevel     = "OTPROBE_LOG_LEVEL"
	EnvNoColor      = "OTPROBE_NO_COLOR"
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrInvalidURL indicates a target that is not a ws:// or wss:// URL.
	ErrInvalidURL = errors.New("otprobe/config: url must use the ws or wss scheme")
	// ErrInvalidSubprotocol indicates an empty entry in the subprotocol list.
	ErrInvalidSubprotocol = errors.New("otprobe/config: subprotocol cannot be empty")
	// ErrNegative indicates a duration or limit below zero.
	ErrNegative = errors.New("otprobe/config: value cannot be negative")
)

// --------------------------------------------------------------------------------
// Types

// Config holds everything the probe needs for one run.
type Config struct {
	URL          string
	Subprotocols []string
	Username     string
	Password     string
	// Commands are sent in order after the login command.
	Commands     []command.Command
	Timeout      time.Duration
	CloseTimeout time.Duration // Wait for the gateway to answer our close frame.
	PingInterval time.Duration // 0 disables keep-alive pings.
	ReadLimit    int64         // 0 means no limit.
	LogLevel     string
	NoColor      bool
}

// Default returns the configuration of a probe run with nothing set.
func Default() Config {
	return Config{
		URL:          DefaultURL,
		Subprotocols: []string{DefaultSubprotocol},
		Username:     DefaultUsername,
		Password:     DefaultPassword,
		Timeout:      DefaultTimeout,
		CloseTimeout: DefaultCloseTimeout,
		PingInterval: defaultPingInterval,
		LogLevel:     DefaultLogLevel,
	}
}

// --------------------------------------------------------------------------------
// Loading

// Load reads the given dotenv files (".env" when none are named) and then
// the process environment. Missing dotenv files are skipped; variables
// already present in the environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{DefaultDotenvFile}
	}

	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("otprobe/config: load %s: %w", f, err)
		}
	}

	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Default()

	cfg.URL = getEnv(EnvURL, cfg.URL)
	cfg.Username = lookupEnv(EnvUsername, cfg.Username)
	cfg.Password = lookupEnv(EnvPassword, cfg.Password)
	cfg.LogLevel = getEnv(EnvLogLevel, cfg.LogLevel)

	if v, ok := os.LookupEnv(EnvSubprotocols); ok {
		cfg.Subprotocols = splitList(v)
	}

	cmds, err := command.ParseList(os.Getenv(EnvCommands))
	if err != nil {
		return Config{}, fmt.Errorf("otprobe/config: %s: %w", EnvCommands, err)
	}

	cfg.Commands = cmds

	if cfg.Timeout, err = getDuration(EnvTimeout, cfg.Timeout); err != nil {
		return Config{}, err
	}

	if cfg.CloseTimeout, err = getDuration(EnvCloseTimeout, cfg.CloseTimeout); err != nil {
		return Config{}, err
	}

	if cfg.PingInterval, err = getDuration(EnvPingInterval, cfg.PingInterval); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(EnvReadLimit); v != "" {
		if cfg.ReadLimit, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Config{}, fmt.Errorf("otprobe/config: %s: %w", EnvReadLimit, err)
		}
	}

	if v := os.Getenv(EnvNoColor); v != "" {
		if cfg.NoColor, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("otprobe/config: %s: %w", EnvNoColor, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, c.URL)
	}

	for _, p := range c.Subprotocols {
		if p == "" {
			return ErrInvalidSubprotocol
		}
	}

	if c.Timeout < 0 || c.CloseTimeout < 0 || c.PingInterval < 0 || c.ReadLimit < 0 {
		return ErrNegative
	}

	return nil
}

// --------------------------------------------------------------------------------
// Helpers

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

// lookupEnv is like getEnv but keeps an explicitly empty value, so a blank
// credential can be sent.
func lookupEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("otprobe/config: %s: %w", key, err)
	}

	return d, nil
}

// splitList splits a comma separated list, trimming spaces. A blank value
// yields an empty list so that no subprotocol is requested.
func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}

	parts := strings.Split(v, defaultListSep)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}

	return parts
}
