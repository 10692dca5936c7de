package console

import (
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrConfigInvalid = errors.New("console config is invalid")

const (
	DefaultPort         = "8080"
	DefaultPollInterval = 3 * time.Second
)

// Config is the configuration of the console daemon.
type Config struct {
	// Backend is the management backend the console talks to.
	Backend BackendConfig `yaml:"backend"`

	Server ServerConfig `yaml:"server"`

	List ListConfig `yaml:"list"`

	Requests RequestsConfig `yaml:"requests"`

	Templates TemplatesConfig `yaml:"templates"`
}

type BackendCert struct {
	// base64 encoded CA certificate
	CA string `yaml:"ca,omitempty"`
}

type BackendConfig struct {
	// endpoint of the backend, like https://backend.example.com:8282
	ApiRoot string `yaml:"apiRoot"`

	Cert BackendCert `yaml:"cert"`

	// session token to be sent. Optional; the console can log in by itself.
	Token string `yaml:"token,omitempty"`
}

type ServerConfig struct {
	Port     string `yaml:"port,omitempty"`
	LogLevel string `yaml:"loglevel,omitempty"`
}

// ListConfig decides the page size of lists.
//
// When PageSize is positive, it is used. Otherwise, when Viewport is given,
// the page size is estimated from it. When neither, lists are not paged.
type ListConfig struct {
	PageSize int       `yaml:"pageSize,omitempty"`
	Viewport *Viewport `yaml:"viewport,omitempty"`
}

type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type RequestsConfig struct {
	// interval to poll status of requests in progress.
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
}

type TemplatesConfig struct {
	// images shown when users search nothing.
	RecommendedImages []RecommendedImage `yaml:"recommendedImages,omitempty"`
}

type RecommendedImage struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

func verifyUrl(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs()
}

func verifyPEM(b64cert string) bool {
	bin, err := base64.StdEncoding.DecodeString(b64cert)
	if err != nil {
		return false
	}
	blk, _ := pem.Decode(bin)
	return blk != nil
}

// Verify Config
//
// # Return
//
// nil if it is valid. Otherwise, ErrConfigInvalid error.
func (c *Config) Verify() error {
	if !verifyUrl(c.Backend.ApiRoot) {
		return fmt.Errorf("%w: backend.apiRoot is not URL: %s", ErrConfigInvalid, c.Backend.ApiRoot)
	}
	if c.Backend.Cert.CA != "" && !verifyPEM(c.Backend.Cert.CA) {
		return fmt.Errorf("%w: backend.cert.ca is not PEM", ErrConfigInvalid)
	}
	if c.List.PageSize < 0 {
		return fmt.Errorf("%w: list.pageSize should not be negative: %d", ErrConfigInvalid, c.List.PageSize)
	}
	if vp := c.List.Viewport; vp != nil && (vp.Width <= 0 || vp.Height <= 0) {
		return fmt.Errorf("%w: list.viewport should be positive: %dx%d", ErrConfigInvalid, vp.Width, vp.Height)
	}
	if c.Requests.PollInterval < 0 {
		return fmt.Errorf("%w: requests.pollInterval should not be negative", ErrConfigInvalid)
	}
	for i, img := range c.Templates.RecommendedImages {
		if img.Name == "" {
			return fmt.Errorf("%w: templates.recommendedImages[%d].name is empty", ErrConfigInvalid, i)
		}
	}
	return nil
}

// Port returns the port to listen, or the default.
func (c *Config) Port() string {
	if c.Server.Port == "" {
		return DefaultPort
	}
	return c.Server.Port
}

// PollInterval returns the interval to poll requests, or the default.
func (c *Config) PollInterval() time.Duration {
	if c.Requests.PollInterval == 0 {
		return DefaultPollInterval
	}
	return c.Requests.PollInterval
}

// Load reads and verifies config from a file.
func Load(filepath string) (*Config, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

// Unmarshal reads and verifies config from yaml.
func Unmarshal(conf []byte) (*Config, error) {
	out := new(Config)
	if err := yaml.Unmarshal(conf, out); err != nil {
		return nil, err
	}
	if err := out.Verify(); err != nil {
		return nil, err
	}
	return out, nil
}
