package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// outputList collects repeated -o/--outputs flags, the flag.Value idiom
// for a multi-valued flag the standard library doesn't provide
// natively.
type outputList []string

func (o *outputList) String() string { return strings.Join(*o, ",") }
func (o *outputList) Set(v string) error {
	*o = append(*o, v)
	return nil
}

// Config mirrors the command surface of spec §6, modeled on the
// teacher's cmd/driver/config.go shape: plain fields plus a Check()
// normalizer that fills defaults and validates required combinations,
// rather than a flags/cobra framework (spec's Non-goals keep general
// CLI parsing out of scope).
type Config struct {
	Command       string     `yaml:"-"` // infer | draw | blur | noop; positional, never in a config file
	Input         string     `yaml:"Input"`
	Outputs       outputList `yaml:"Outputs"`
	RecognitionID string     `yaml:"RecognitionID"`
	AMQPURL       string     `yaml:"AMQPURL"`
	RoutingKey    string     `yaml:"RoutingKey"`
	Threshold     float64    `yaml:"Threshold"`
	ThresholdSet  bool       `yaml:"ThresholdSet"`
	InputFPS      int        `yaml:"InputFPS"`
	OutputFPS     int        `yaml:"OutputFPS"`
	SkipFrame     int        `yaml:"SkipFrame"`
	FromFile      string     `yaml:"FromFile"`
	StudioFormat  bool       `yaml:"StudioFormat"`
	Recursive     bool       `yaml:"Recursive"`
	DrawScores    bool       `yaml:"DrawScores"`
	DrawLabels    bool       `yaml:"DrawLabels"`
	BlurMethod    string     `yaml:"BlurMethod"`
	BlurStrength  int        `yaml:"BlurStrength"`
	Fullscreen    bool       `yaml:"Fullscreen"`
	WatchInput    bool       `yaml:"WatchInput"`
	ServiceAction string     `yaml:"-"` // install|uninstall|start|stop|run; never persisted, always a flag

	// AppID / APIKey come from the APP_ID / API_KEY environment
	// variables (spec §6), never from flags or a config file.
	AppID  string `yaml:"-"`
	APIKey string `yaml:"-"`
}

// loadConfigFile reads a YAML config file into Config before flags are
// applied, the same json/yaml-tagged-struct convention as the teacher's
// cmd/driver/config.go (there defined but never wired to a loader; here
// actually read, since cmd/infer has no config-file flag otherwise).
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	return nil
}

var validCommands = map[string]bool{"infer": true, "draw": true, "blur": true, "noop": true}
var validBlurMethods = map[string]bool{"pixel": true, "gaussian": true, "black": true}

// Check validates and normalizes the parsed Config, mirroring the
// teacher's Config.Check (required-field errors, defaulted optionals).
func (c *Config) Check() error {
	if !validCommands[c.Command] {
		return fmt.Errorf("config: command must be one of infer|draw|blur|noop, got %q", c.Command)
	}
	if c.Input == "" {
		return errors.New("config: -i/--input is required")
	}
	if len(c.Outputs) == 0 {
		return errors.New("config: at least one -o/--outputs is required")
	}
	if c.ThresholdSet && (c.Threshold < 0 || c.Threshold > 1) {
		return fmt.Errorf("config: -t/--threshold must be in [0,1], got %v", c.Threshold)
	}
	if c.Command == "blur" {
		if c.BlurMethod == "" {
			c.BlurMethod = "pixel"
		}
		if !validBlurMethods[c.BlurMethod] {
			return fmt.Errorf("config: --blur_method must be one of pixel|gaussian|black, got %q", c.BlurMethod)
		}
		if c.BlurStrength <= 0 {
			c.BlurStrength = 10
		}
	}
	if c.Command == "infer" && c.FromFile == "" {
		if c.RecognitionID == "" {
			return errors.New("config: -r/--recognition_id is required")
		}
		if c.AMQPURL == "" {
			if c.AppID == "" || c.APIKey == "" {
				return errors.New("config: APP_ID and API_KEY environment variables are required for the cloud backend")
			}
		} else if c.RoutingKey == "" {
			return errors.New("config: --routing_key is required when --amqp_url is set")
		}
	}
	if c.InputFPS < 0 {
		c.InputFPS = 0
	}
	if c.OutputFPS <= 0 {
		c.OutputFPS = 25
	}
	if c.SkipFrame < 0 {
		c.SkipFrame = 0
	}
	return nil
}

// thresholdPtr returns nil unless the user explicitly passed -t, per
// spec §4.4's "override per-label thresholds" semantics (absence means
// per-annotation thresholds apply).
func (c *Config) thresholdPtr() *float64 {
	if !c.ThresholdSet {
		return nil
	}
	t := c.Threshold
	return &t
}
