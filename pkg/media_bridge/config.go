package media_bridge

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/arzzra/phone_bridge/pkg/media"
	"github.com/arzzra/phone_bridge/pkg/rtp"
)

const (
	// DefaultTrackName имя трека, публикуемого в комнату
	DefaultTrackName = "sip_audio"

	// DefaultRecvPollInterval период проверки флага работы в цикле приема
	DefaultRecvPollInterval = 5 * time.Second

	// DefaultRecvQueueSize емкость очереди между чтением сокета и обработкой
	DefaultRecvQueueSize = 512
)

// Config содержит параметры одного моста.
type Config struct {
	// Сетевые настройки
	PublicIP          string // Внешний IP, объявляемый в SDP (обязателен, не 0.0.0.0)
	BindIP            string // Адрес привязки сокета, по умолчанию 0.0.0.0
	LocalPort         int    // Порт из PortPool; 0 = порт выбирает система
	ReceiveBufferSize int    // SO_RCVBUF
	DSCP              int    // Маркировка исходящих пакетов, 0 = без маркировки

	// Медиа
	PendingFrames int     // Емкость буфера кадров до ответа на INVITE
	InboundGain   float64 // Усиление входящего звука после декодирования
	TrackName     string  // Имя публикуемого трека

	// Прием
	RecvPollInterval time.Duration
	RecvQueueSize    int

	Logger  *slog.Logger
	Metrics *Metrics // nil = метрики не собираются
}

// DefaultConfig возвращает конфигурацию по умолчанию.
// PublicIP не заполняется: его нужно указать явно.
func DefaultConfig() Config {
	return Config{
		BindIP:            "0.0.0.0",
		ReceiveBufferSize: rtp.DefaultReceiveBuffer,
		PendingFrames:     media.DefaultPendingFrames,
		InboundGain:       media.DefaultInboundGain,
		TrackName:         DefaultTrackName,
		RecvPollInterval:  DefaultRecvPollInterval,
		RecvQueueSize:     DefaultRecvQueueSize,
	}
}

// Validate проверяет конфигурацию.
// Пустой или неуказанный (0.0.0.0) PublicIP недопустим: удаленная сторона
// будет слать RTP в никуда.
func (c *Config) Validate() error {
	if c.PublicIP == "" {
		return media.NewMediaError(media.ErrorCodeConfiguration,
			"PublicIP должен быть внешним IP сервера, получено пустое значение")
	}
	ip := net.ParseIP(c.PublicIP)
	if ip == nil {
		return media.NewMediaError(media.ErrorCodeConfiguration,
			fmt.Sprintf("PublicIP %q не является IP адресом", c.PublicIP))
	}
	if ip.IsUnspecified() {
		return media.NewMediaError(media.ErrorCodeConfiguration,
			fmt.Sprintf("PublicIP должен быть внешним IP сервера, получено %q", c.PublicIP))
	}

	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return media.NewMediaError(media.ErrorCodeConfiguration,
			fmt.Sprintf("LocalPort вне диапазона: %d", c.LocalPort))
	}
	if c.PendingFrames <= 0 {
		return media.NewMediaError(media.ErrorCodeConfiguration, "PendingFrames должен быть больше 0")
	}
	if c.InboundGain <= 0 {
		return media.NewMediaError(media.ErrorCodeConfiguration, "InboundGain должен быть больше 0")
	}
	if c.RecvPollInterval <= 0 {
		return media.NewMediaError(media.ErrorCodeConfiguration, "RecvPollInterval должен быть больше 0")
	}
	if c.RecvQueueSize <= 0 {
		return media.NewMediaError(media.ErrorCodeConfiguration, "RecvQueueSize должен быть больше 0")
	}
	if c.TrackName == "" {
		return media.NewMediaError(media.ErrorCodeConfiguration, "TrackName не может быть пустым")
	}
	return nil
}

func (c *Config) socketConfig() rtp.SocketConfig {
	sc := rtp.DefaultSocketConfig()
	if c.BindIP != "" {
		sc.BindIP = c.BindIP
	}
	sc.ReceiveBufferSize = c.ReceiveBufferSize
	sc.DSCP = c.DSCP
	return sc
}
