package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Upload    UploadConfig
	FFmpeg    FFmpegConfig
	Cleanup   CleanupConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port     string `validate:"required"`
	Env      string `validate:"required"`
	LogLevel string `validate:"required"`
}

type StorageConfig struct {
	BaseDir string `validate:"required"`
}

type UploadConfig struct {
	MaxFileSize int64 `validate:"gt=0"` // bytes
}

type FFmpegConfig struct {
	Path         string `validate:"required"`
	Timeout      int    `validate:"gte=0"` // seconds, 0 disables the deadline
	OutputFormat string `validate:"required,alphanum"`
	Codec        string `validate:"required"`
	Bitrate      string `validate:"required"`
	SampleRate   string `validate:"required,numeric"`
	Channels     string `validate:"required,numeric"`
}

type CleanupConfig struct {
	ThresholdMinutes int `validate:"gte=1"`
	IntervalMinutes  int `validate:"gte=0"` // 0 disables the periodic sweep
}

type RedisConfig struct {
	Addr     string `validate:"required"`
	Password string
	DB       int `validate:"gte=0"`
}

type RateLimitConfig struct {
	UploadPerHour int `validate:"gte=0"` // 0 disables rate limiting
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("storage.base_dir", "STORAGE_BASE_DIR")
	_ = viper.BindEnv("upload.max_file_size", "UPLOAD_MAX_FILE_SIZE")
	_ = viper.BindEnv("ffmpeg.path", "FFMPEG_PATH")
	_ = viper.BindEnv("ffmpeg.timeout", "FFMPEG_TIMEOUT")
	_ = viper.BindEnv("ffmpeg.output_format", "FFMPEG_OUTPUT_FORMAT")
	_ = viper.BindEnv("ffmpeg.codec", "FFMPEG_CODEC")
	_ = viper.BindEnv("ffmpeg.bitrate", "FFMPEG_BITRATE")
	_ = viper.BindEnv("ffmpeg.sample_rate", "FFMPEG_SAMPLE_RATE")
	_ = viper.BindEnv("ffmpeg.channels", "FFMPEG_CHANNELS")
	_ = viper.BindEnv("cleanup.threshold_minutes", "CLEANUP_THRESHOLD_MINUTES")
	_ = viper.BindEnv("cleanup.interval_minutes", "CLEANUP_INTERVAL_MINUTES")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("storage.base_dir", "storage")
	viper.SetDefault("upload.max_file_size", int64(2)*1024*1024*1024)
	viper.SetDefault("ffmpeg.path", "ffmpeg")
	viper.SetDefault("ffmpeg.timeout", 600)
	viper.SetDefault("ffmpeg.output_format", "mp3")
	viper.SetDefault("ffmpeg.codec", "libmp3lame")
	viper.SetDefault("ffmpeg.bitrate", "192k")
	viper.SetDefault("ffmpeg.sample_rate", "44100")
	viper.SetDefault("ffmpeg.channels", "1")
	viper.SetDefault("cleanup.threshold_minutes", 30)
	viper.SetDefault("cleanup.interval_minutes", 30)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ratelimit.upload_per_hour", 50)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Storage: StorageConfig{
			BaseDir: viper.GetString("storage.base_dir"),
		},
		Upload: UploadConfig{
			MaxFileSize: viper.GetInt64("upload.max_file_size"),
		},
		FFmpeg: FFmpegConfig{
			Path:         viper.GetString("ffmpeg.path"),
			Timeout:      viper.GetInt("ffmpeg.timeout"),
			OutputFormat: viper.GetString("ffmpeg.output_format"),
			Codec:        viper.GetString("ffmpeg.codec"),
			Bitrate:      viper.GetString("ffmpeg.bitrate"),
			SampleRate:   viper.GetString("ffmpeg.sample_rate"),
			Channels:     viper.GetString("ffmpeg.channels"),
		},
		Cleanup: CleanupConfig{
			ThresholdMinutes: viper.GetInt("cleanup.threshold_minutes"),
			IntervalMinutes:  viper.GetInt("cleanup.interval_minutes"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour: viper.GetInt("ratelimit.upload_per_hour"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
