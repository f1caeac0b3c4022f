//go:build darwin

package rtp

import (
	"golang.org/x/sys/unix"
)

func setSockOptReuseAddr(fd uintptr) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

// setSockOptBuffers на macOS возвращает ENOBUFS, если значение больше kern.ipc.maxsockbuf.
// В этом случае пробуем половину, пока не получится.
func setSockOptBuffers(fd uintptr, recv, send int) error {
	for size := recv; size > 0; size /= 2 {
		err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
		if err == nil {
			break
		}
		if err != unix.ENOBUFS {
			return err
		}
	}
	if send > 0 {
		return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, send)
	}
	return nil
}

func setSockOptDSCP(fd uintptr, dscp int) error {
	return unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, dscp<<2)
}

func getSockOptReceiveBuffer(fd uintptr) (int, error) {
	return unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
}
