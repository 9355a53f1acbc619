package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	S3     S3Config
	DB     DBConfig
	App    AppConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
}

type DBConfig struct {
	Path string
}

type AppConfig struct {
	MaxUploadSize     int64
	AllowedFormats    []string
	PresignTTL        time.Duration
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitBurst    int
	Debug             bool
}

func Load() (*Config, error) {
	viper.SetDefault("SERVER_HOST", "localhost")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("S3_ENDPOINT", "http://localhost:9000")
	viper.SetDefault("S3_ACCESS_KEY_ID", "minioadmin")
	viper.SetDefault("S3_SECRET_ACCESS_KEY", "minioadmin")
	viper.SetDefault("S3_USE_SSL", false)
	viper.SetDefault("S3_BUCKET_NAME", "images")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("DB_PATH", "./data/registry")
	viper.SetDefault("APP_MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	viper.SetDefault("APP_ALLOWED_FORMATS", []string{"png", "jpg", "jpeg"})
	viper.SetDefault("APP_PRESIGN_TTL_SECONDS", 100)
	viper.SetDefault("APP_RATE_LIMIT_ENABLED", true)
	viper.SetDefault("APP_RATE_LIMIT_REQUESTS", 20)
	viper.SetDefault("APP_RATE_LIMIT_BURST", 50)
	viper.SetDefault("APP_DEBUG", false)

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("SERVER_HOST"),
			Port: viper.GetString("SERVER_PORT"),
		},
		S3: S3Config{
			Endpoint:        viper.GetString("S3_ENDPOINT"),
			AccessKeyID:     viper.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: viper.GetString("S3_SECRET_ACCESS_KEY"),
			UseSSL:          viper.GetBool("S3_USE_SSL"),
			BucketName:      viper.GetString("S3_BUCKET_NAME"),
			Region:          viper.GetString("S3_REGION"),
		},
		DB: DBConfig{
			Path: viper.GetString("DB_PATH"),
		},
		App: AppConfig{
			MaxUploadSize:     viper.GetInt64("APP_MAX_UPLOAD_SIZE"),
			AllowedFormats:    viper.GetStringSlice("APP_ALLOWED_FORMATS"),
			PresignTTL:        time.Duration(viper.GetInt("APP_PRESIGN_TTL_SECONDS")) * time.Second,
			RateLimitEnabled:  viper.GetBool("APP_RATE_LIMIT_ENABLED"),
			RateLimitRequests: viper.GetInt("APP_RATE_LIMIT_REQUESTS"),
			RateLimitBurst:    viper.GetInt("APP_RATE_LIMIT_BURST"),
			Debug:             viper.GetBool("APP_DEBUG"),
		},
	}

	return cfg, nil
}
