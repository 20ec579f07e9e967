package main

import (
	"fmt"
	"time"

	"github.com/solarmarket/creative-rotation/internal/creative"
	"github.com/spf13/viper"
)

type Config struct {
	Logger    LoggerConf    `mapstructure:"logger"`
	HTTP      HTTPConf      `mapstructure:"http"`
	DB        DBConf        `mapstructure:"db"`
	AMQP      AMQPConf      `mapstructure:"amqp"`
	Redis     RedisConf     `mapstructure:"redis"`
	Rotation  RotationConf  `mapstructure:"rotation"`
	Telemetry TelemetryConf `mapstructure:"telemetry"`
	Fallback  FallbackConf  `mapstructure:"fallback"`
}

type LoggerConf struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type HTTPConf struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type DBConf struct {
	// Empty connection string selects the in-memory store.
	ConnectionString string `mapstructure:"connection_string"`
}

type AMQPConf struct {
	// Empty URI disables telemetry publishing.
	URI      string `mapstructure:"uri"`
	Exchange string `mapstructure:"exchange"`
}

type RedisConf struct {
	// Empty addr selects the in-memory session store.
	Addr     string        `mapstructure:"addr"`
	StateTTL time.Duration `mapstructure:"state_ttl"`
}

type RotationConf struct {
	IntervalMS int `mapstructure:"interval_ms"`
}

type TelemetryConf struct {
	DedupWindow time.Duration `mapstructure:"dedup_window"`
}

// FallbackConf is the static creative served when the store is unavailable.
type FallbackConf struct {
	Title           string `mapstructure:"title"`
	ImageURL        string `mapstructure:"image_url"`
	TargetURL       string `mapstructure:"target_url"`
	BackgroundColor string `mapstructure:"background_color"`
	TextColor       string `mapstructure:"text_color"`
}

func (f FallbackConf) Creative() *creative.Creative {
	if f.TargetURL == "" {
		return nil
	}

	return &creative.Creative{
		ID:              "fallback",
		Title:           f.Title,
		ImageURL:        f.ImageURL,
		TargetURL:       f.TargetURL,
		BackgroundColor: f.BackgroundColor,
		TextColor:       f.TextColor,
		DeviceTarget:    creative.DeviceAll,
		DisplayPolicy:   creative.PolicyAlways,
	}
}

func NewConfig() (Config, error) {
	viper.SetConfigFile(configFile)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("http.host", "0.0.0.0")
	viper.SetDefault("http.port", "5555")
	viper.SetDefault("amqp.exchange", "creative-rotation")
	viper.SetDefault("redis.state_ttl", 24*time.Hour)
	viper.SetDefault("rotation.interval_ms", 5000)
	viper.SetDefault("telemetry.dedup_window", 24*time.Hour)

	if err := viper.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("can't read config file, %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("can't parse config file, %w", err)
	}

	return config, nil
}
