package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/pkg/logger"
)

func MustInit() {
	if err := godotenv.Load("./.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("error while loading .env file: " + err.Error())
	}

	setDefaults()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/sync-agent")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		panic("error while reading config file: " + err.Error())
	}
	SetupLogger()
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.http.port", "8080")

	viper.SetDefault("remote.timeout_seconds", 15)

	viper.SetDefault("sync.thread_interval", "10s")
	viper.SetDefault("sync.conversations_interval", "30s")
	viper.SetDefault("sync.call_timeout", "15s")
	viper.SetDefault("sync.backoff.base", "10s")
	viper.SetDefault("sync.backoff.max", "5m")
	viper.SetDefault("sync.rate_limit_warning_threshold", 3)

	viper.SetDefault("chat.max_message_length", 2000)
	viper.SetDefault("notify.buffer_size", 64)

	viper.SetDefault("otel.service_name", "sync-agent")
	viper.SetDefault("jaeger.endpoint", "http://jaeger:14268/api/traces")
}

func SetupLogger() {
	handler := logger.NewHandler(nil)
	log := slog.New(handler)
	slog.SetDefault(log)
}
