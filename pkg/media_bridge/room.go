package media_bridge

import (
	"context"

	"github.com/arzzra/phone_bridge/pkg/media"
)

// TrackSource назначение публикуемого трека
type TrackSource int

const (
	TrackSourceUnknown TrackSource = iota
	// TrackSourceMicrophone трек воспринимается участниками комнаты как голос собеседника
	TrackSourceMicrophone
)

func (s TrackSource) String() string {
	switch s {
	case TrackSourceMicrophone:
		return "microphone"
	default:
		return "unknown"
	}
}

// TrackOptions параметры публикуемого аудио трека
type TrackOptions struct {
	Name        string
	SampleRate  int
	NumChannels int
	Source      TrackSource
}

// AudioSource принимает кадры, которые уходят в комнату
type AudioSource interface {
	CaptureFrame(ctx context.Context, frame media.AudioFrame) error
}

// Room конференц-комната, в которую мост публикует звук телефона.
// Звук комнаты в обратную сторону вызывающий код передает через Bridge.SendToRTP.
type Room interface {
	PublishAudioTrack(ctx context.Context, opts TrackOptions) (AudioSource, error)
}
