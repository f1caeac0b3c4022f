package media_bridge

import (
	"fmt"
	"strconv"

	"github.com/arzzra/phone_bridge/pkg/media"
	"github.com/pion/sdp/v3"
)

// RemoteEndpoint медиа адрес удаленной стороны
type RemoteEndpoint struct {
	IP          string
	Port        int
	PayloadType uint8
}

func (e RemoteEndpoint) String() string {
	return fmt.Sprintf("%s:%d PT=%d", e.IP, e.Port, e.PayloadType)
}

// LocalDescription формирует SDP с внешним адресом моста.
// Предлагаются PCMA и PCMU (в этом порядке), ptime 20ms, sendrecv.
func (b *Bridge) LocalDescription(sessionID uint64) *sdp.SessionDescription {
	connection := &sdp.ConnectionInformation{
		NetworkType: "IN",
		AddressType: "IP4",
		Address:     &sdp.Address{Address: b.publicIP},
	}

	description := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      sessionID,
			SessionVersion: sessionID,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: b.publicIP,
		},
		SessionName:           "phone_bridge",
		ConnectionInformation: connection,
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
	}

	audio := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:  "audio",
			Port:   sdp.RangedPort{Value: b.localPort},
			Protos: []string{"RTP", "AVP"},
		},
	}
	// WithCodec добавляет формат в m= и rtpmap
	audio.WithCodec(media.PayloadTypePCMA, "PCMA", media.SampleRateSIP, 0, "")
	audio.WithCodec(media.PayloadTypePCMU, "PCMU", media.SampleRateSIP, 0, "")
	audio.WithValueAttribute("ptime", strconv.Itoa(int(media.Ptime.Milliseconds())))
	audio.WithPropertyAttribute("sendrecv")

	description.MediaDescriptions = []*sdp.MediaDescription{audio}
	return description
}

// ParseRemoteEndpoint извлекает из SDP ответа адрес, порт и кодек первой аудио секции.
// Адрес берется из c= секции, иначе из c= сессии. Выбирается первый формат из {8, 0}.
func ParseRemoteEndpoint(body []byte) (RemoteEndpoint, error) {
	var description sdp.SessionDescription
	if err := description.Unmarshal(body); err != nil {
		return RemoteEndpoint{}, media.WrapMediaError(media.ErrorCodeSDPInvalid, "", "ошибка разбора SDP", err)
	}

	for _, md := range description.MediaDescriptions {
		if md.MediaName.Media != "audio" {
			continue
		}

		connection := md.ConnectionInformation
		if connection == nil {
			connection = description.ConnectionInformation
		}
		if connection == nil || connection.Address == nil || connection.Address.Address == "" {
			return RemoteEndpoint{}, media.NewMediaError(media.ErrorCodeSDPInvalid, "в SDP нет адреса соединения (c=)")
		}

		port := md.MediaName.Port.Value
		if port <= 0 || port > 65535 {
			return RemoteEndpoint{}, media.NewMediaError(media.ErrorCodeSDPInvalid,
				fmt.Sprintf("аудио поток отклонен или порт некорректен: %d", port))
		}

		for _, format := range md.MediaName.Formats {
			pt, err := strconv.Atoi(format)
			if err != nil || pt < 0 || pt > 127 {
				continue
			}
			if media.IsSupportedPayloadType(uint8(pt)) {
				return RemoteEndpoint{
					IP:          connection.Address.Address,
					Port:        port,
					PayloadType: uint8(pt),
				}, nil
			}
		}
		return RemoteEndpoint{}, media.NewMediaError(media.ErrorCodeUnsupportedPayloadType,
			fmt.Sprintf("нет общего кодека G.711 среди форматов %v", md.MediaName.Formats))
	}

	return RemoteEndpoint{}, media.NewMediaError(media.ErrorCodeSDPInvalid, "в SDP нет аудио секции")
}

// ApplyRemoteDescription разбирает SDP ответ и устанавливает удаленный адрес
func (b *Bridge) ApplyRemoteDescription(body []byte) (RemoteEndpoint, error) {
	endpoint, err := ParseRemoteEndpoint(body)
	if err != nil {
		return RemoteEndpoint{}, err
	}
	if err := b.SetRemoteEndpoint(endpoint.IP, endpoint.Port, endpoint.PayloadType); err != nil {
		return RemoteEndpoint{}, err
	}
	return endpoint, nil
}
