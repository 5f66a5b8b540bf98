package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the file or flags leave options unset.
const (
	DefaultListenAddr      = ":5000"
	DefaultDatabase        = "orchestra"
	DefaultTimeSpeedup     = 1
	DefaultChecksPerHour   = 12
	DefaultStoreTimeout    = 10 * time.Second
	DefaultCleanupProgress = 30 * time.Minute
	DefaultPendingGrace    = 30 * time.Minute
)

// Duration is a time.Duration reading Go duration strings from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds every recognized orchestrator option.
type Config struct {
	// External URL advertised to workers for callbacks.
	APIURL     string `yaml:"api_url"`
	ListenAddr string `yaml:"listen_addr"`

	// Shared secrets for the root and node principals.
	RootSecret string `yaml:"root_secret"`
	NodeSecret string `yaml:"node_secret"`

	// Empty connection string selects the in-memory mock store.
	MongoAdminConnection string `yaml:"mongo_admin_connection"`
	Database             string `yaml:"database"`

	// Empty connection string requires mock mode.
	RabbitConnection string `yaml:"rabbit_connection"`

	// Shared storage layout.
	StoragePath       string `yaml:"storage_path"`
	StorageAddress    string `yaml:"storage_address"`
	StorageMountpoint string `yaml:"storage_mountpoint"`

	// Worker queues offered per service.
	TransformQueues []string `yaml:"transform_queues"`
	PublisherQueues []string `yaml:"publisher_queues"`

	// Notification e-mail, disabled when the server is empty.
	EmailServer   string `yaml:"email_server"`
	EmailTLS      bool   `yaml:"email_tls"`
	EmailAddress  string `yaml:"email_address"`
	EmailUsername string `yaml:"email_username"`
	EmailPassword string `yaml:"email_password"`

	// Worker charm provisioning.
	CharmsRelease    string `yaml:"charms_release"`
	CharmsRepository string `yaml:"charms_repository"`
	JujuConfigFile   string `yaml:"juju_config_file"`

	LogLevel string `yaml:"log_level"`

	// Planning clock: simulated hours advance TimeSpeedup times faster than
	// wall clock, with ChecksPerHour reconciliations per simulated hour.
	TimeSpeedup   int `yaml:"time_speedup"`
	ChecksPerHour int `yaml:"checks_per_hour"`

	// EventsTable is a YAML file planning worker capacity per simulated
	// hour. Empty plans zero units everywhere.
	EventsTable string `yaml:"events_table"`

	// Observer ring length, 0 means 30 samples per simulated hour.
	StatisticsMaxlen int    `yaml:"statistics_maxlen"`
	StatisticsPath   string `yaml:"statistics_path"`

	// Janitor tuning. MaxOutputMedias 0 disables the bound.
	CleanupProgressTime Duration `yaml:"cleanup_progress_time"`
	PendingMediaGrace   Duration `yaml:"pending_media_grace"`
	MaxOutputMedias     int      `yaml:"max_output_medias"`

	// Mock mode replaces the queue, blobstore and cluster adapters with
	// in-process fakes so the control plane runs without infrastructure.
	Mock bool `yaml:"mock"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	return &Config{
		ListenAddr:          DefaultListenAddr,
		Database:            DefaultDatabase,
		StoragePath:         "/mnt/storage",
		StorageMountpoint:   "medias_volume",
		TransformQueues:     []string{"transform_private"},
		PublisherQueues:     []string{"publisher_private"},
		LogLevel:            "info",
		TimeSpeedup:         DefaultTimeSpeedup,
		ChecksPerHour:       DefaultChecksPerHour,
		StatisticsPath:      "statistics.db",
		CleanupProgressTime: Duration(DefaultCleanupProgress),
		PendingMediaGrace:   Duration(DefaultPendingGrace),
	}
}

// Load reads a YAML configuration file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks option consistency before startup
func (c *Config) Validate() error {
	if c.RootSecret == "" || c.NodeSecret == "" {
		return fmt.Errorf("root_secret and node_secret are required")
	}
	if c.RabbitConnection == "" && !c.Mock {
		return fmt.Errorf("rabbit_connection is required outside mock mode")
	}
	if c.TimeSpeedup < 1 {
		return fmt.Errorf("time_speedup must be at least 1")
	}
	if c.ChecksPerHour < 1 {
		return fmt.Errorf("checks_per_hour must be at least 1")
	}
	return nil
}

// StatisticsLimit returns the observer ring length.
func (c *Config) StatisticsLimit() int {
	if c.StatisticsMaxlen > 0 {
		return c.StatisticsMaxlen
	}
	return 30 * c.ChecksPerHour
}

// EmailEnabled reports whether notification mails are configured.
func (c *Config) EmailEnabled() bool {
	return c.EmailServer != ""
}
