package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fixed configuration values shared by all three workers and the splitter
const (
	// ServicePort is the port the application runtime listens on inside
	// every worker variant
	ServicePort = 3000

	// ListenerPort is the splitter's public listener port
	ListenerPort = 80

	// StoragePort is the shared filesystem's default service port (NFS)
	StoragePort = 2049

	// DefaultMountPath is where every worker mounts the shared storage
	DefaultMountPath = "/mnt/app"

	// MountPathEnvVar carries the mount path into each worker's runtime
	// environment
	MountPathEnvVar = "STORAGE_MOUNT_PATH"

	// DefaultWeight is the traffic weight given to each target when the
	// manifest does not say otherwise
	DefaultWeight = 1

	// DefaultDataDir is where deployment records are stored
	DefaultDataDir = "./triad-data"
)

// WeightConfig holds per-target traffic weights. Pointers distinguish an
// explicit 0 (fully drained target) from an omitted value (default 1).
type WeightConfig struct {
	VM       *int `yaml:"vm,omitempty"`
	Service  *int `yaml:"service,omitempty"`
	Function *int `yaml:"function,omitempty"`
}

// Config describes one deployment manifest
type Config struct {
	Name         string        `yaml:"name"`
	Image        string        `yaml:"image"`
	Network      string        `yaml:"network,omitempty"`
	MountPath    string        `yaml:"mountPath,omitempty"`
	ServicePort  int           `yaml:"servicePort,omitempty"`
	ListenerPort int           `yaml:"listenerPort,omitempty"`
	DataDir      string        `yaml:"dataDir,omitempty"`
	Weights      *WeightConfig `yaml:"weights,omitempty"`
}

// Load reads and validates a deployment manifest
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a deployment manifest
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with the fixed defaults
func (c *Config) ApplyDefaults() {
	if c.MountPath == "" {
		c.MountPath = DefaultMountPath
	}
	if c.ServicePort == 0 {
		c.ServicePort = ServicePort
	}
	if c.ListenerPort == 0 {
		c.ListenerPort = ListenerPort
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Weights == nil {
		c.Weights = &WeightConfig{}
	}
	defaultWeight := DefaultWeight
	if c.Weights.VM == nil {
		w := defaultWeight
		c.Weights.VM = &w
	}
	if c.Weights.Service == nil {
		w := defaultWeight
		c.Weights.Service = &w
	}
	if c.Weights.Function == nil {
		w := defaultWeight
		c.Weights.Function = &w
	}
}

// Validate checks the manifest for fatal configuration errors
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("deployment name is required")
	}
	if c.Image == "" {
		return fmt.Errorf("image reference is required")
	}
	if !strings.HasPrefix(c.MountPath, "/") {
		return fmt.Errorf("mount path must be absolute, got %q", c.MountPath)
	}
	if c.ServicePort <= 0 || c.ServicePort > 65535 {
		return fmt.Errorf("service port out of range: %d", c.ServicePort)
	}
	if c.ListenerPort <= 0 || c.ListenerPort > 65535 {
		return fmt.Errorf("listener port out of range: %d", c.ListenerPort)
	}
	vm, svc, fn := c.TargetWeights()
	if vm < 0 || svc < 0 || fn < 0 {
		return fmt.Errorf("traffic weights must be non-negative")
	}
	if vm+svc+fn == 0 {
		return fmt.Errorf("at least one traffic weight must be positive")
	}
	return nil
}

// TargetWeights returns the per-variant traffic weights
func (c *Config) TargetWeights() (vm, service, function int) {
	if c.Weights == nil {
		return DefaultWeight, DefaultWeight, DefaultWeight
	}
	vm, service, function = DefaultWeight, DefaultWeight, DefaultWeight
	if c.Weights.VM != nil {
		vm = *c.Weights.VM
	}
	if c.Weights.Service != nil {
		service = *c.Weights.Service
	}
	if c.Weights.Function != nil {
		function = *c.Weights.Function
	}
	return vm, service, function
}
