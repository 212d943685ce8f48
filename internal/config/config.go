// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supervisor operating modes
const (
	ModeEpisode = "episode" // one ffmpeg process per media item
	ModeConcat  = "concat"  // single long-lived process reading a concat manifest
)

const (
	defaultServerPort         = 8090
	defaultServerHost         = "0.0.0.0"
	defaultReadTimeout        = 30 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultMediaDir           = "/media"
	defaultMinFileSizeBytes   = 1024 * 1024 // 1MB
	defaultMinDurationSeconds = 60
	defaultProbeTimeout       = 10 * time.Second
	defaultOutputDir          = "./hls"
	defaultMode               = ModeEpisode
	defaultSegmentDuration    = 6
	defaultPlaylistSize       = 10
	defaultLivenessWindow     = 45 * time.Second
	defaultIdleGap            = 2 * time.Second
	defaultStatusInterval     = 60 * time.Second
	defaultDenylistPath       = "./data/denylist.txt"
	defaultManifestPath       = "./data/playlist.txt"
	defaultDatabasePath       = "./data/shufflecast.db"
	defaultMigrationsPath     = "file://./migrations"
	defaultLogLevel           = "info"
	defaultLogPretty          = false
	envPrefix                 = "SHUFFLECAST"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Media     MediaConfig
	Streaming StreamingConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MediaConfig holds media library and inventory validation configuration
type MediaConfig struct {
	LibraryPath        string
	MinFileSizeBytes   int64
	MinDurationSeconds int
	ProbeTimeout       time.Duration
	SupportedFormats   []string
}

// StreamingConfig holds transcode supervisor configuration
type StreamingConfig struct {
	OutputDir       string
	Mode            string
	SegmentDuration int
	PlaylistSize    int
	LivenessWindow  time.Duration
	IdleGap         time.Duration
	StatusInterval  time.Duration
	DenylistPath    string
	ManifestPath    string
	RealtimePacing  bool
	EncodingPreset  string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path           string
	EnableWAL      bool
	MigrationsPath string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shufflecast")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	// Media defaults
	v.SetDefault("media.librarypath", defaultMediaDir)
	v.SetDefault("media.minfilesizebytes", defaultMinFileSizeBytes)
	v.SetDefault("media.mindurationseconds", defaultMinDurationSeconds)
	v.SetDefault("media.probetimeout", defaultProbeTimeout)
	v.SetDefault("media.supportedformats", []string{"mp4", "mkv", "avi", "mov"})

	// Streaming defaults
	v.SetDefault("streaming.outputdir", defaultOutputDir)
	v.SetDefault("streaming.mode", defaultMode)
	v.SetDefault("streaming.segmentduration", defaultSegmentDuration)
	v.SetDefault("streaming.playlistsize", defaultPlaylistSize)
	v.SetDefault("streaming.livenesswindow", defaultLivenessWindow)
	v.SetDefault("streaming.idlegap", defaultIdleGap)
	v.SetDefault("streaming.statusinterval", defaultStatusInterval)
	v.SetDefault("streaming.denylistpath", defaultDenylistPath)
	v.SetDefault("streaming.manifestpath", defaultManifestPath)
	v.SetDefault("streaming.realtimepacing", true)
	v.SetDefault("streaming.encodingpreset", "veryfast")

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.enablewal", true)
	v.SetDefault("database.migrationspath", defaultMigrationsPath)

	// Logging defaults
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}

	if c.Media.LibraryPath == "" {
		return errors.New("media library path cannot be empty")
	}
	if c.Media.MinFileSizeBytes < 0 {
		return fmt.Errorf("invalid min file size: %d (must be >= 0)", c.Media.MinFileSizeBytes)
	}
	if c.Media.ProbeTimeout <= 0 {
		return fmt.Errorf("invalid probe timeout: %v (must be > 0)", c.Media.ProbeTimeout)
	}

	if c.Streaming.Mode != ModeEpisode && c.Streaming.Mode != ModeConcat {
		return fmt.Errorf("invalid streaming mode: %s (must be %s or %s)", c.Streaming.Mode, ModeEpisode, ModeConcat)
	}
	if c.Streaming.SegmentDuration <= 0 {
		return fmt.Errorf("invalid segment duration: %d (must be > 0)", c.Streaming.SegmentDuration)
	}
	if c.Streaming.PlaylistSize <= 0 {
		return fmt.Errorf("invalid playlist size: %d (must be > 0)", c.Streaming.PlaylistSize)
	}
	if c.Streaming.LivenessWindow <= 0 {
		return fmt.Errorf("invalid liveness window: %v (must be > 0)", c.Streaming.LivenessWindow)
	}
	if c.Streaming.OutputDir == "" {
		return errors.New("streaming output directory cannot be empty")
	}
	if c.Streaming.Mode == ModeConcat && c.Streaming.ManifestPath == "" {
		return errors.New("concat manifest path cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
