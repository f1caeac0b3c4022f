package main

import (
	"context"
	"sync/atomic"

	"github.com/arzzra/phone_bridge/pkg/media"
	"github.com/arzzra/phone_bridge/pkg/media_bridge"
)

// frameSink получатель кадров комнаты, на практике *media_bridge.Bridge
type frameSink interface {
	SendToRTP(frame media.AudioFrame) error
}

// echoRoom комната из одного участника: все, что публикует мост, отправляется обратно в телефон.
type echoRoom struct {
	sink   frameSink
	frames atomic.Uint64
	track  media_bridge.TrackOptions
}

func newEchoRoom(sink frameSink) *echoRoom {
	return &echoRoom{sink: sink}
}

func (r *echoRoom) PublishAudioTrack(_ context.Context, opts media_bridge.TrackOptions) (media_bridge.AudioSource, error) {
	r.track = opts
	return r, nil
}

// CaptureFrame реализует media_bridge.AudioSource
func (r *echoRoom) CaptureFrame(_ context.Context, frame media.AudioFrame) error {
	r.frames.Add(1)
	return r.sink.SendToRTP(frame)
}

// Frames возвращает число возвращенных в телефон кадров
func (r *echoRoom) Frames() uint64 {
	return r.frames.Load()
}
