package config

// RuntimeConfig defines the subset of the configuration that can be
// modified at runtime through the web API. The shared password is not
// part of it.
type RuntimeConfig struct {
	SSIDs    []string       `yaml:"SSIDs" json:"SSIDs"`
	Features FeatureSection `yaml:"Features" json:"Features"`
}

// Runtime extracts the runtime-modifiable part of c.
func (c *Config) Runtime() RuntimeConfig {
	f := c.File()
	return RuntimeConfig{
		SSIDs:    f.WiFi.SSIDs,
		Features: f.Features,
	}
}

// Merge returns the file representation of c with rc applied on top.
func (rc RuntimeConfig) Merge(c *Config) File {
	f := c.File()
	if rc.SSIDs != nil {
		f.WiFi.SSIDs = append([]string{}, rc.SSIDs...)
	}
	f.Features = rc.Features
	return f
}
