package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the timesync binaries.
type Config struct {
	// LogLevel is the default log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// Master configures the time reference role.
	Master Master `yaml:"master"`
	// Slave configures the time-following role.
	Slave Slave `yaml:"slave"`
}

// Master holds the settings of the time reference.
type Master struct {
	// BindAddress is the local UDP address of the master socket.
	BindAddress string `yaml:"bind_address"`
	// TargetAddress is where Sync and FollowUp beacons are sent.
	TargetAddress string `yaml:"target_address"`
	// SyncPeriod is the interval between two beacons.
	SyncPeriod time.Duration `yaml:"sync_period"`
	// ReceiveBuffer is the maximum datagram size read from the socket.
	ReceiveBuffer int `yaml:"receive_buffer"`
	// HealthAddress optionally exposes the gRPC health service.
	HealthAddress string `yaml:"health_address"`
	// Advertise announces the master over mDNS.
	Advertise bool `yaml:"advertise"`
	// Instance is the mDNS instance name, the hostname when empty.
	Instance string `yaml:"instance"`
}

// Slave holds the settings of a time-following peer.
type Slave struct {
	// BindAddress is the local UDP address the slave listens on.
	BindAddress string `yaml:"bind_address"`
	// MeanWindow is the number of offset samples averaged.
	MeanWindow int `yaml:"mean_window"`
	// NotifyBuffer is the capacity of the notification queue.
	NotifyBuffer int `yaml:"notify_buffer"`
	// ReceiveBuffer is the maximum datagram size read from the socket.
	ReceiveBuffer int `yaml:"receive_buffer"`
	// ReusePort lets several slaves bind the same port on one host.
	ReusePort bool `yaml:"reuse_port"`
	// SnapshotFile optionally receives the latest offset as JSON.
	SnapshotFile string `yaml:"snapshot_file"`
	// HealthAddress optionally exposes the gRPC health service.
	HealthAddress string `yaml:"health_address"`
}

const (
	// DefaultMasterBindAddress is the default local address of the master.
	DefaultMasterBindAddress = "0.0.0.0:13000"
	// DefaultTargetAddress is the subnet broadcast address on the well-known slave port.
	DefaultTargetAddress = "255.255.255.255:13001"
	// DefaultSlaveBindAddress listens on the well-known slave port.
	DefaultSlaveBindAddress = "0.0.0.0:13001"
	// DefaultSyncPeriod is the default beacon interval.
	DefaultSyncPeriod = 500 * time.Millisecond
	// DefaultMeanWindow is the default number of averaged samples.
	DefaultMeanWindow = 64
	// DefaultNotifyBuffer is the default notification queue capacity.
	DefaultNotifyBuffer = 1024
	// DefaultReceiveBuffer is the default maximum datagram size.
	DefaultReceiveBuffer = 1024
	// DefaultLogLevel is used when nothing else sets the level.
	DefaultLogLevel = "info"
	// DefaultFilePermissions is the permission for files written by the binaries.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeValue is returned when a size or period is below zero.
	errNegativeValue = errors.New("value must not be negative")
)

// Default returns the built-in settings.
func Default() *Config {
	cfg := new(Config)

	// Validate only fills defaults on an empty config.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults for zero values and checks addresses and sizes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if err := validateMaster(&cfg.Master); err != nil {
		return fmt.Errorf("master: %w", err)
	}

	if err := validateSlave(&cfg.Slave); err != nil {
		return fmt.Errorf("slave: %w", err)
	}

	return nil
}

func validateMaster(m *Master) error {
	setDefault(&m.BindAddress, DefaultMasterBindAddress)
	setDefault(&m.TargetAddress, DefaultTargetAddress)

	if m.SyncPeriod < 0 {
		return fmt.Errorf("sync_period: %w", errNegativeValue)
	}

	if m.SyncPeriod == 0 {
		m.SyncPeriod = DefaultSyncPeriod
	}

	if err := setDefaultSize("receive_buffer", &m.ReceiveBuffer, DefaultReceiveBuffer); err != nil {
		return err
	}

	if err := ValidateUDPAddress(m.BindAddress); err != nil {
		return fmt.Errorf("bind_address: %w", err)
	}

	if err := ValidateUDPAddress(m.TargetAddress); err != nil {
		return fmt.Errorf("target_address: %w", err)
	}

	if err := validateHealthAddress(m.HealthAddress); err != nil {
		return fmt.Errorf("health_address: %w", err)
	}

	return nil
}

func validateSlave(s *Slave) error {
	setDefault(&s.BindAddress, DefaultSlaveBindAddress)

	sizes := []struct {
		name     string
		value    *int
		fallback int
	}{
		{"mean_window", &s.MeanWindow, DefaultMeanWindow},
		{"notify_buffer", &s.NotifyBuffer, DefaultNotifyBuffer},
		{"receive_buffer", &s.ReceiveBuffer, DefaultReceiveBuffer},
	}

	for _, size := range sizes {
		if err := setDefaultSize(size.name, size.value, size.fallback); err != nil {
			return err
		}
	}

	if err := ValidateUDPAddress(s.BindAddress); err != nil {
		return fmt.Errorf("bind_address: %w", err)
	}

	if err := validateHealthAddress(s.HealthAddress); err != nil {
		return fmt.Errorf("health_address: %w", err)
	}

	return nil
}

// ValidateUDPAddress checks that address is a resolvable host:port pair.
func ValidateUDPAddress(address string) error {
	if _, err := net.ResolveUDPAddr("udp", address); err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}

	return nil
}

// validateHealthAddress checks the optional gRPC listen address.
func validateHealthAddress(address string) error {
	if address == "" {
		return nil
	}

	if _, err := net.ResolveTCPAddr("tcp", address); err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}

	return nil
}

func setDefault(value *string, fallback string) {
	if *value == "" {
		*value = fallback
	}
}

func setDefaultSize(name string, value *int, fallback int) error {
	if *value < 0 {
		return fmt.Errorf("%s: %w", name, errNegativeValue)
	}

	if *value == 0 {
		*value = fallback
	}

	return nil
}
