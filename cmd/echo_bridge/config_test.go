package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/phone_bridge/pkg/media"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(nil, "")
	require.NoError(t, err)

	assert.Equal(t, 31000, cfg.PortRangeStart)
	assert.Equal(t, 31100, cfg.PortRangeEnd)
	assert.Equal(t, 8, cfg.PayloadType)
	assert.Equal(t, 30*time.Second, cfg.SilenceTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.PublicIP)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("SIP_BRIDGE_PUBLIC_IP", "203.0.113.10")
	t.Setenv("SIP_BRIDGE_PAYLOAD_TYPE", "0")
	t.Setenv("SIP_BRIDGE_SILENCE_TIMEOUT", "5s")
	t.Setenv("SIP_BRIDGE_LOG_FORMAT", "json")

	cfg, err := loadConfig(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.10", cfg.PublicIP)
	assert.Equal(t, 0, cfg.PayloadType)
	assert.Equal(t, 5*time.Second, cfg.SilenceTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("SIP_BRIDGE_PUBLIC_IP", "203.0.113.10")

	cmd := newRunCommand(new(string))
	require.NoError(t, cmd.ParseFlags([]string{
		"--public-ip", "198.51.100.1",
		"--remote-ip", "198.51.100.7",
		"--remote-port", "40000",
	}))

	cfg, err := loadConfig(cmd, "")
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.1", cfg.PublicIP)
	assert.Equal(t, "198.51.100.7", cfg.RemoteIP)
	assert.Equal(t, 40000, cfg.RemotePort)
	assert.Equal(t, 31000, cfg.PortRangeStart, "флаг без значения не перекрывает умолчание")
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
public_ip: 192.0.2.5
port_range_start: 40000
port_range_end: 40010
log:
  level: debug
`), 0o600))

	cfg, err := loadConfig(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.5", cfg.PublicIP)
	assert.Equal(t, 40000, cfg.PortRangeStart)
	assert.Equal(t, 40010, cfg.PortRangeEnd)
	assert.Equal(t, "debug", cfg.Log.Level)

	_, err = loadConfig(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{PayloadType: 8, SilenceTimeout: time.Second, Log: LogConfig{Format: "text"}}
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "неизвестный кодек", modify: func(c *Config) { c.PayloadType = 18 }},
		{name: "payload type вне диапазона", modify: func(c *Config) { c.PayloadType = 264 }},
		{name: "удаленный IP", modify: func(c *Config) { c.RemoteIP = "pbx.local"; c.RemotePort = 4000 }},
		{name: "удаленный порт", modify: func(c *Config) { c.RemoteIP = "198.51.100.7" }},
		{name: "отрицательный таймаут", modify: func(c *Config) { c.SilenceTimeout = -time.Second }},
		{name: "формат логов", modify: func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, media.HasErrorCode(err, media.ErrorCodeConfiguration))
		})
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := newLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("не попадет в вывод")
	logger.Warn("тишина", "port", 31000)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "тишина", record["msg"])
	assert.Equal(t, float64(31000), record["port"])

	_, _, err = newLogger(LogConfig{Level: "verbose", Format: "text"}, &buf)
	assert.Error(t, err)
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	logger, closer, err := newLogger(LogConfig{Level: "info", Format: "text", File: path, MaxSize: 1}, nil)
	require.NoError(t, err)

	logger.Info("запись в файл")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "запись в файл")
}
