package main

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arzzra/phone_bridge/pkg/media"
	"github.com/arzzra/phone_bridge/pkg/port_pool"
)

// envPrefix префикс переменных окружения: SIP_BRIDGE_PUBLIC_IP, SIP_BRIDGE_LOG_LEVEL ...
const envPrefix = "SIP_BRIDGE"

// Config настройки команды run
type Config struct {
	PublicIP       string        `mapstructure:"public_ip"`
	PortRangeStart int           `mapstructure:"port_range_start"`
	PortRangeEnd   int           `mapstructure:"port_range_end"`
	RemoteIP       string        `mapstructure:"remote_ip"`
	RemotePort     int           `mapstructure:"remote_port"`
	PayloadType    int           `mapstructure:"payload_type"`
	SilenceTimeout time.Duration `mapstructure:"silence_timeout"`
	MetricsListen  string        `mapstructure:"metrics_listen"`
	Log            LogConfig     `mapstructure:"log"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug | info | warn | error
	Format     string `mapstructure:"format"` // text | json
	File       string `mapstructure:"file"`   // пусто = stderr
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("public_ip", "")
	v.SetDefault("remote_ip", "")
	v.SetDefault("remote_port", 0)
	v.SetDefault("port_range_start", port_pool.DefaultRangeStart)
	v.SetDefault("port_range_end", port_pool.DefaultRangeEnd)
	v.SetDefault("payload_type", int(media.PayloadTypePCMA))
	v.SetDefault("silence_timeout", 30*time.Second)
	v.SetDefault("metrics_listen", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 14)
}

// loadConfig собирает конфигурацию из файла (если указан), окружения и флагов.
// Приоритет: флаги, окружение, файл, значения по умолчанию.
func loadConfig(cmd *cobra.Command, path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("не удалось прочитать файл конфигурации: %w", err)
		}
	}

	if cmd != nil {
		if err := bindFlags(v, cmd); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("не удалось разобрать конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindFlags связывает флаги вида --public-ip с ключами public_ip
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	keys := map[string]string{
		"public-ip":        "public_ip",
		"port-range-start": "port_range_start",
		"port-range-end":   "port_range_end",
		"remote-ip":        "remote_ip",
		"remote-port":      "remote_port",
		"payload-type":     "payload_type",
		"silence-timeout":  "silence_timeout",
		"metrics-listen":   "metrics_listen",
		"log-level":        "log.level",
		"log-format":       "log.format",
		"log-file":         "log.file",
	}
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("флаг --%s: %w", flag, err)
		}
	}
	return nil
}

// Validate проверяет то, что не проверяют сами компоненты
func (c *Config) Validate() error {
	if c.PayloadType < 0 || c.PayloadType > 127 || !media.IsSupportedPayloadType(uint8(c.PayloadType)) {
		return media.NewMediaError(media.ErrorCodeConfiguration,
			fmt.Sprintf("payload_type %d не поддерживается, допустимо 0 (PCMU) или 8 (PCMA)", c.PayloadType))
	}
	if c.RemoteIP != "" && net.ParseIP(c.RemoteIP) == nil {
		return media.NewMediaError(media.ErrorCodeConfiguration,
			fmt.Sprintf("remote_ip %q не является IP адресом", c.RemoteIP))
	}
	if c.RemoteIP != "" && (c.RemotePort <= 0 || c.RemotePort > 65535) {
		return media.NewMediaError(media.ErrorCodeConfiguration,
			fmt.Sprintf("remote_port вне диапазона: %d", c.RemotePort))
	}
	if c.SilenceTimeout < 0 {
		return media.NewMediaError(media.ErrorCodeConfiguration, "silence_timeout не может быть отрицательным")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return media.NewMediaError(media.ErrorCodeConfiguration,
			fmt.Sprintf("неизвестный формат логов %q", c.Log.Format))
	}
	return nil
}
