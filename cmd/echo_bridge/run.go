package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arzzra/phone_bridge/pkg/media"
	"github.com/arzzra/phone_bridge/pkg/media_bridge"
	"github.com/arzzra/phone_bridge/pkg/port_pool"
)

// watchdogInterval период проверки тишины
const watchdogInterval = time.Second

func newRunCommand(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Запустить эхо мост",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, *configFile)
			if err != nil {
				return err
			}

			logger, closer, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.String("public-ip", "", "внешний IP для SDP (обязателен)")
	flags.Int("port-range-start", port_pool.DefaultRangeStart, "начало диапазона RTP портов")
	flags.Int("port-range-end", port_pool.DefaultRangeEnd, "конец диапазона RTP портов (не включая)")
	flags.String("remote-ip", "", "IP удаленной стороны")
	flags.Int("remote-port", 0, "RTP порт удаленной стороны")
	flags.Int("payload-type", int(media.PayloadTypePCMA), "кодек: 0 (PCMU) или 8 (PCMA)")
	flags.Duration("silence-timeout", 30*time.Second, "остановка после тишины, 0 = без ограничения")
	flags.String("metrics-listen", "", "адрес HTTP для /metrics, например :9100")
	flags.String("log-level", "info", "уровень логов")
	flags.String("log-format", "text", "формат логов: text или json")
	flags.String("log-file", "", "файл логов с ротацией")
	return cmd
}

func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pool, err := port_pool.New(cfg.PortRangeStart, cfg.PortRangeEnd,
		port_pool.WithLogger(logger),
		port_pool.WithRegisterer(reg))
	if err != nil {
		return err
	}

	port, err := pool.Acquire()
	if err != nil {
		return err
	}
	defer pool.Release(port)

	bridgeConfig := media_bridge.DefaultConfig()
	bridgeConfig.PublicIP = cfg.PublicIP
	bridgeConfig.LocalPort = port
	bridgeConfig.Logger = logger
	bridgeConfig.Metrics = media_bridge.NewMetrics(reg)

	bridge, err := media_bridge.New(bridgeConfig)
	if err != nil {
		return err
	}
	defer bridge.Stop()

	room := newEchoRoom(bridge)
	if err := bridge.StartInbound(ctx, room); err != nil {
		return err
	}

	if cfg.RemoteIP != "" {
		if err := bridge.SetRemoteEndpoint(cfg.RemoteIP, cfg.RemotePort, uint8(cfg.PayloadType)); err != nil {
			return err
		}
	}

	offer, err := bridge.LocalDescription(uint64(time.Now().Unix())).Marshal()
	if err != nil {
		return fmt.Errorf("не удалось сформировать SDP: %w", err)
	}
	logger.Info("Локальный SDP", slog.String("sdp", string(offer)))

	if cfg.MetricsListen != "" {
		server := serveMetrics(cfg.MetricsListen, reg, logger)
		defer server.Close()
	}

	reason := waitForSilence(ctx, bridge, cfg.SilenceTimeout, time.Now())

	stats := bridge.Stats()
	logger.Info("Эхо мост остановлен",
		slog.String("reason", reason),
		slog.Uint64("echoed_frames", room.Frames()),
		slog.Uint64("rx_packets", stats.PacketsReceived),
		slog.Uint64("tx_packets", stats.PacketsSent))
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP сервер метрик остановлен", slog.String("error", err.Error()))
		}
	}()
	logger.Info("Метрики доступны", slog.String("addr", addr))
	return server
}

// silenceSource источник времени последнего входящего пакета
type silenceSource interface {
	SecondsSinceRx() (time.Duration, bool)
}

// waitForSilence блокируется до отмены ctx или тишины дольше timeout.
// До первого пакета тишина отсчитывается от started. Возвращает причину остановки.
func waitForSilence(ctx context.Context, src silenceSource, timeout time.Duration, started time.Time) string {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "signal"
		case <-ticker.C:
			if timeout <= 0 {
				continue
			}
			if silentFor(src, started) > timeout {
				return "silence"
			}
		}
	}
}

func silentFor(src silenceSource, started time.Time) time.Duration {
	if since, ok := src.SecondsSinceRx(); ok {
		return since
	}
	return time.Since(started)
}
