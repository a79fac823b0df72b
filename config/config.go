package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	CONFILE = "config.yml"

	// PasswordEnv overrides WiFi.Password after the file has been read.
	PasswordEnv = "CAPRACLOCK_WIFI_PASSWORD"
)

//go:embed defaults.yml
var defaultsYAML []byte

// DefaultsYAML returns the embedded, commented default configuration file.
func DefaultsYAML() []byte {
	return slices.Clone(defaultsYAML)
}

// File is the on-disk representation of the configuration. It is only used
// for reading and writing YAML; the running program works with *Config.
type File struct {
	WiFi     WiFiSection    `yaml:"WiFi" json:"WiFi"`
	Features FeatureSection `yaml:"Features" json:"Features"`
	Display  DisplaySection `yaml:"Display" json:"Display"`
	Logging  LoggingSection `yaml:"Logging" json:"Logging"`
}

type WiFiSection struct {
	// An empty entry marks an unused slot. Order is connection priority.
	SSIDs []string `yaml:"SSIDs,flow" json:"SSIDs"`
	// Shared by every entry of SSIDs. Empty means an open network.
	Password string `yaml:"Password" json:"Password"`
}

type FeatureSection struct {
	EnableDate    bool `yaml:"EnableDate" json:"EnableDate"`
	EnableSensors bool `yaml:"EnableSensors" json:"EnableSensors"`
	ShowLogo      bool `yaml:"ShowLogo" json:"ShowLogo"`
}

type DisplaySection struct {
	ScreenDuration time.Duration `yaml:"ScreenDuration" json:"ScreenDuration"`
	LogoDuration   time.Duration `yaml:"LogoDuration" json:"LogoDuration"`
}

type LoggingSection struct {
	Level  string `yaml:"Level" json:"Level"`
	Format string `yaml:"Format" json:"Format"`
	File   string `yaml:"File" json:"File"`
}

// Config is the immutable configuration of a running clock. It is built once
// and handed to whoever needs it; a reload produces a new *Config instead of
// changing an existing one.
type Config struct {
	ssids          []string
	password       string
	enableDate     bool
	enableSensors  bool
	showLogo       bool
	screenDuration time.Duration
	logoDuration   time.Duration
	logging        LoggingSection
}

func defaultFile() File {
	return File{
		WiFi: WiFiSection{
			SSIDs:    []string{"", ""},
			Password: "",
		},
		Display: DisplaySection{
			ScreenDuration: 5 * time.Second,
			LogoDuration:   3 * time.Second,
		},
		Logging: LoggingSection{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// Default returns the configuration used when no file is given: two unused
// network slots, no password and every feature switched off.
func Default() *Config {
	return fromFile(defaultFile())
}

// New builds a Config from its file representation and validates it.
func New(f File) (*Config, error) {
	conf := fromFile(f)
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func fromFile(f File) *Config {
	ssids := slices.Clone(f.WiFi.SSIDs)
	if ssids == nil {
		ssids = []string{}
	}
	return &Config{
		ssids:          ssids,
		password:       f.WiFi.Password,
		enableDate:     f.Features.EnableDate,
		enableSensors:  f.Features.EnableSensors,
		showLogo:       f.Features.ShowLogo,
		screenDuration: f.Display.ScreenDuration,
		logoDuration:   f.Display.LogoDuration,
		logging:        f.Logging,
	}
}

// Parse decodes YAML on top of the defaults. Keys that are missing keep their
// default value, unknown keys are an error.
func Parse(data []byte) (*Config, error) {
	f := defaultFile()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("can't decode config: %w", err)
	}
	return New(f)
}

// ReadConfig reads and validates the YAML file at cfile.
func ReadConfig(cfile string) (*Config, error) {
	data, err := os.ReadFile(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't read config file %s: %w", cfile, err)
	}
	conf, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfile, err)
	}
	return conf, nil
}

// Load is ReadConfig followed by the environment overrides. An empty cfile
// means "defaults only".
func Load(cfile string) (*Config, error) {
	conf := Default()
	if cfile != "" {
		var err error
		if conf, err = ReadConfig(cfile); err != nil {
			return nil, err
		}
	}
	if pass, ok := os.LookupEnv(PasswordEnv); ok {
		slog.Debug("Using WiFi password from environment", "key", PasswordEnv, "sensitive", true)
		conf = conf.WithPassword(pass)
	}
	return conf, nil
}

// NetworkCandidates returns the configured network names in priority order.
// Unused slots are returned as empty strings and must be skipped by the
// caller. The returned slice is a copy.
func (c *Config) NetworkCandidates() []string {
	return slices.Clone(c.ssids)
}

// SharedPassword is used for every entry of NetworkCandidates.
func (c *Config) SharedPassword() string {
	return c.password
}

func (c *Config) DateFeatureEnabled() bool {
	return c.enableDate
}

func (c *Config) SensorsFeatureEnabled() bool {
	return c.enableSensors
}

func (c *Config) LogoFeatureEnabled() bool {
	return c.showLogo
}

func (c *Config) ScreenDuration() time.Duration {
	return c.screenDuration
}

func (c *Config) LogoDuration() time.Duration {
	return c.logoDuration
}

func (c *Config) Logging() LoggingSection {
	return c.logging
}

// WithPassword returns a copy of c using pass as shared password.
func (c *Config) WithPassword(pass string) *Config {
	f := c.File()
	f.WiFi.Password = pass
	return fromFile(f)
}

// File returns the on-disk representation of c.
func (c *Config) File() File {
	return File{
		WiFi: WiFiSection{
			SSIDs:    slices.Clone(c.ssids),
			Password: c.password,
		},
		Features: FeatureSection{
			EnableDate:    c.enableDate,
			EnableSensors: c.enableSensors,
			ShowLogo:      c.showLogo,
		},
		Display: DisplaySection{
			ScreenDuration: c.screenDuration,
			LogoDuration:   c.logoDuration,
		},
		Logging: c.logging,
	}
}

// Redacted returns the file representation with the password masked. Use it
// whenever the configuration leaves the process (logs, web API).
func (c *Config) Redacted() File {
	f := c.File()
	if f.WiFi.Password != "" {
		f.WiFi.Password = "***"
	}
	return f
}

// Validate checks the display and logging settings. The network list and the
// shared password are taken as they are: empty slots, short passwords and
// long names are all left to whoever connects.
func (c *Config) Validate() error {
	var errs []error

	if c.screenDuration <= 0 {
		errs = append(errs, fmt.Errorf("Display.ScreenDuration must be positive, got %s", c.screenDuration))
	}
	if c.showLogo && c.logoDuration <= 0 {
		errs = append(errs, fmt.Errorf("Display.LogoDuration must be positive when ShowLogo is set, got %s", c.logoDuration))
	}

	switch strings.ToUpper(c.logging.Level) {
	case "", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("Logging.Level %q is not one of DEBUG, INFO, WARN, ERROR", c.logging.Level))
	}
	switch strings.ToLower(c.logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("Logging.Format %q is not one of text, json", c.logging.Format))
	}

	return errors.Join(errs...)
}

// Local Variables:
// compile-command: "cd .. && go build"
// End:
