//go:build windows

package rtp

import (
	"golang.org/x/sys/windows"
)

// setSockOptReuseAddr в Windows SO_REUSEADDR позволяет перехватить занятый порт,
// поэтому для RTP используем SO_EXCLUSIVEADDRUSE.
func setSockOptReuseAddr(fd uintptr) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_EXCLUSIVEADDRUSE, 1)
}

func setSockOptBuffers(fd uintptr, recv, send int) error {
	if recv > 0 {
		if err := windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_RCVBUF, recv); err != nil {
			return err
		}
	}
	if send > 0 {
		if err := windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_SNDBUF, send); err != nil {
			return err
		}
	}
	return nil
}

// setSockOptDSCP Windows игнорирует IP_TOS без QoS политики, оставляем без маркировки
func setSockOptDSCP(fd uintptr, dscp int) error {
	return nil
}

func getSockOptReceiveBuffer(fd uintptr) (int, error) {
	return 0, nil
}
