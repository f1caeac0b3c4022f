package rtp

import (
	"errors"
	"fmt"
	"net"

	"github.com/arzzra/phone_bridge/pkg/media"
	"github.com/pion/rtp"
)

// ParsePacket разбирает входящую датаграмму.
// Датаграммы не длиннее заголовка (без payload) и пакеты с версией != 2 отклоняются.
func ParsePacket(data []byte) (*rtp.Packet, error) {
	if len(data) <= media.RTPHeaderSize {
		return nil, media.NewMediaError(media.ErrorCodeDecode,
			fmt.Sprintf("датаграмма слишком мала: %d байт", len(data)))
	}

	packet := &rtp.Packet{}
	if err := packet.Unmarshal(data); err != nil {
		return nil, media.WrapMediaError(media.ErrorCodeDecode, "", "ошибка разбора RTP пакета", err)
	}

	if packet.Version != ExpectedRTPVersion {
		return nil, media.NewMediaError(media.ErrorCodeDecode,
			fmt.Sprintf("неподдерживаемая версия RTP: %d (ожидается %d)", packet.Version, ExpectedRTPVersion))
	}
	if len(packet.Payload) == 0 {
		return nil, media.NewMediaError(media.ErrorCodeDecode, "RTP пакет без payload")
	}

	return packet, nil
}

// IsClosedError сообщает, что операция завершилась из-за закрытия сокета
func IsClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// IsTimeoutError сообщает о таймауте чтения или записи
func IsTimeoutError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
