package media_bridge

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/arzzra/phone_bridge/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sdpBody(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func TestBridge_LocalDescription(t *testing.T) {
	b := newTestBridge(t, func(c *Config) { c.PublicIP = "203.0.113.10" })

	raw, err := b.LocalDescription(42).Marshal()
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, "c=IN IP4 203.0.113.10")
	assert.Contains(t, body, fmt.Sprintf("m=audio %d RTP/AVP 8 0", b.LocalPort()))
	assert.Contains(t, body, "a=rtpmap:8 PCMA/8000")
	assert.Contains(t, body, "a=rtpmap:0 PCMU/8000")
	assert.Contains(t, body, "a=ptime:20")
	assert.Contains(t, body, "a=sendrecv")

	// Собственное описание разбирается обратно в тот же адрес
	endpoint, err := ParseRemoteEndpoint(raw)
	require.NoError(t, err)
	assert.Equal(t, RemoteEndpoint{IP: "203.0.113.10", Port: b.LocalPort(), PayloadType: media.PayloadTypePCMA}, endpoint)
}

func TestParseRemoteEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		want     RemoteEndpoint
		wantCode media.MediaErrorCode
	}{
		{
			name: "адрес сессии, первый поддерживаемый формат",
			body: sdpBody(
				"v=0",
				"o=- 1 1 IN IP4 198.51.100.7",
				"s=-",
				"c=IN IP4 198.51.100.7",
				"t=0 0",
				"m=audio 40000 RTP/AVP 101 0 8",
				"a=rtpmap:101 telephone-event/8000",
			),
			want: RemoteEndpoint{IP: "198.51.100.7", Port: 40000, PayloadType: media.PayloadTypePCMU},
		},
		{
			name: "адрес медиа секции важнее адреса сессии",
			body: sdpBody(
				"v=0",
				"o=- 1 1 IN IP4 198.51.100.7",
				"s=-",
				"c=IN IP4 198.51.100.7",
				"t=0 0",
				"m=audio 40002 RTP/AVP 8",
				"c=IN IP4 198.51.100.99",
			),
			want: RemoteEndpoint{IP: "198.51.100.99", Port: 40002, PayloadType: media.PayloadTypePCMA},
		},
		{
			name: "нет общего кодека",
			body: sdpBody(
				"v=0",
				"o=- 1 1 IN IP4 198.51.100.7",
				"s=-",
				"c=IN IP4 198.51.100.7",
				"t=0 0",
				"m=audio 40000 RTP/AVP 9 18",
			),
			wantCode: media.ErrorCodeUnsupportedPayloadType,
		},
		{
			name: "нет аудио",
			body: sdpBody(
				"v=0",
				"o=- 1 1 IN IP4 198.51.100.7",
				"s=-",
				"c=IN IP4 198.51.100.7",
				"t=0 0",
				"m=video 40000 RTP/AVP 96",
			),
			wantCode: media.ErrorCodeSDPInvalid,
		},
		{
			name: "нет адреса",
			body: sdpBody(
				"v=0",
				"o=- 1 1 IN IP4 198.51.100.7",
				"s=-",
				"t=0 0",
				"m=audio 40000 RTP/AVP 8",
			),
			wantCode: media.ErrorCodeSDPInvalid,
		},
		{
			name:     "мусор",
			body:     []byte("not an sdp"),
			wantCode: media.ErrorCodeSDPInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRemoteEndpoint(tt.body)
			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.True(t, media.HasErrorCode(err, tt.wantCode), "код ошибки: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBridge_ApplyRemoteDescription(t *testing.T) {
	receiver, port := newReceiver(t)
	b := newTestBridge(t, nil)

	endpoint, err := b.ApplyRemoteDescription(sdpBody(
		"v=0",
		"o=- 1 1 IN IP4 127.0.0.1",
		"s=-",
		"c=IN IP4 127.0.0.1",
		"t=0 0",
		fmt.Sprintf("m=audio %d RTP/AVP 0", port),
	))
	require.NoError(t, err)
	assert.Equal(t, media.PayloadTypePCMU, endpoint.PayloadType)

	current, known := b.RemoteEndpoint()
	require.True(t, known)
	assert.Equal(t, endpoint, current)

	require.NoError(t, b.SendToRTP(silence(media.SampleRateSIP, media.Ptime)))
	data, ok := readDatagram(t, receiver, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, byte(0x80), data[1])
}
