//go:build linux

package rtp

import (
	"golang.org/x/sys/unix"
)

func setSockOptReuseAddr(fd uintptr) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

// setSockOptBuffers устанавливает SO_RCVBUF/SO_SNDBUF.
// Linux удваивает значение и обрезает его по rmem_max/wmem_max без ошибки.
func setSockOptBuffers(fd uintptr, recv, send int) error {
	if recv > 0 {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, recv); err != nil {
			return err
		}
	}
	if send > 0 {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, send); err != nil {
			return err
		}
	}
	return nil
}

// setSockOptDSCP устанавливает DSCP и приоритет сокета для голоса
func setSockOptDSCP(fd uintptr, dscp int) error {
	// DSCP находится в старших 6 битах TOS поля
	if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, dscp<<2); err != nil {
		return err
	}
	// 6 - приоритет интерактивного аудио
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_PRIORITY, 6)
}

func getSockOptReceiveBuffer(fd uintptr) (int, error) {
	return unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
}
