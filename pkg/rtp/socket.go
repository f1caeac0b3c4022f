// Утилиты UDP сокета для RTP моста.
//
// Сокет создается через net.ListenConfig, чтобы опции, влияющие на bind
// (SO_REUSEADDR), устанавливались до привязки к порту. Платформенные
// реализации опций находятся в socket_*.go.
package rtp

import (
	"context"
	"fmt"
	"net"
	"syscall"
)

const (
	// DefaultReceiveBuffer увеличенный буфер приема, сглаживает задержки планировщика
	DefaultReceiveBuffer = 1024 * 1024

	// DefaultSendBuffer буфер отправки; 64KB хватает на ~3 секунды G.711
	DefaultSendBuffer = 65535

	// MaxDatagramSize размер буфера чтения одной датаграммы
	MaxDatagramSize = 4096

	// DSCPExpeditedForwarding EF (101110) для интерактивного аудио по RFC 4594
	DSCPExpeditedForwarding = 46
)

// SocketConfig параметры UDP сокета моста
type SocketConfig struct {
	BindIP            string // Адрес привязки, по умолчанию 0.0.0.0
	ReceiveBufferSize int    // SO_RCVBUF
	SendBufferSize    int    // SO_SNDBUF
	ReuseAddr         bool   // SO_REUSEADDR
	DSCP              int    // 0 = не маркировать
}

// DefaultSocketConfig возвращает настройки сокета по умолчанию
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		BindIP:            "0.0.0.0",
		ReceiveBufferSize: DefaultReceiveBuffer,
		SendBufferSize:    DefaultSendBuffer,
		ReuseAddr:         true,
	}
}

// Validate проверяет параметры сокета
func (c SocketConfig) Validate() error {
	if c.ReceiveBufferSize < 0 || c.SendBufferSize < 0 {
		return fmt.Errorf("размер буфера не может быть отрицательным")
	}
	if c.DSCP < 0 || c.DSCP > 63 {
		return fmt.Errorf("DSCP должен быть в диапазоне 0-63")
	}
	if c.BindIP != "" && net.ParseIP(c.BindIP) == nil {
		return fmt.Errorf("некорректный адрес привязки: %q", c.BindIP)
	}
	return nil
}

// ListenUDP привязывает UDP сокет к порту и применяет опции для голосового трафика.
// port 0 означает порт, выбранный системой.
func ListenUDP(ctx context.Context, port int, config SocketConfig) (*net.UDPConn, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("неверная конфигурация сокета: %w", err)
	}
	bindIP := config.BindIP
	if bindIP == "" {
		bindIP = "0.0.0.0"
	}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockOptErr error
			err := c.Control(func(fd uintptr) {
				sockOptErr = applySockOpts(fd, config)
			})
			if err != nil {
				return fmt.Errorf("ошибка управления сокетом: %w", err)
			}
			return sockOptErr
		},
	}

	addr := net.JoinHostPort(bindIP, fmt.Sprintf("%d", port))
	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания UDP сокета на %s: %w", addr, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("неожиданный тип соединения %T", pc)
	}
	return conn, nil
}

// ReceiveBufferSize возвращает фактический SO_RCVBUF сокета.
// Ядро может ограничить запрошенное значение (net.core.rmem_max на Linux).
func ReceiveBufferSize(conn *net.UDPConn) (int, error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("не удалось получить системный сокет: %w", err)
	}

	var size int
	var sockErr error
	if err := rawConn.Control(func(fd uintptr) {
		size, sockErr = getSockOptReceiveBuffer(fd)
	}); err != nil {
		return 0, err
	}
	return size, sockErr
}

// applySockOpts применяет опции в порядке, нужном до bind
func applySockOpts(fd uintptr, config SocketConfig) error {
	if config.ReuseAddr {
		if err := setSockOptReuseAddr(fd); err != nil {
			return fmt.Errorf("SO_REUSEADDR: %w", err)
		}
	}

	if err := setSockOptBuffers(fd, config.ReceiveBufferSize, config.SendBufferSize); err != nil {
		return fmt.Errorf("ошибка установки буферов: %w", err)
	}

	if config.DSCP > 0 {
		// Маркировка может требовать привилегий, ошибка не критична
		_ = setSockOptDSCP(fd, config.DSCP)
	}
	return nil
}
