package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/phone_bridge/pkg/media"
	"github.com/arzzra/phone_bridge/pkg/media_bridge"
)

type recordingSink struct {
	mu     sync.Mutex
	frames []media.AudioFrame
	err    error
}

func (s *recordingSink) SendToRTP(frame media.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return s.err
}

func TestEchoRoom(t *testing.T) {
	sink := &recordingSink{}
	room := newEchoRoom(sink)

	source, err := room.PublishAudioTrack(context.Background(), media_bridge.TrackOptions{
		Name:        media_bridge.DefaultTrackName,
		SampleRate:  media.SampleRateRoom,
		NumChannels: 1,
		Source:      media_bridge.TrackSourceMicrophone,
	})
	require.NoError(t, err)
	assert.Equal(t, media_bridge.DefaultTrackName, room.track.Name)

	frame := media.AudioFrame{Samples: make([]int16, 960), SampleRate: media.SampleRateRoom, NumChannels: 1}
	require.NoError(t, source.CaptureFrame(context.Background(), frame))
	assert.Equal(t, uint64(1), room.Frames())
	require.Len(t, sink.frames, 1)
	assert.Equal(t, frame, sink.frames[0])

	sink.err = errors.New("сокет закрыт")
	assert.Error(t, source.CaptureFrame(context.Background(), frame))
	assert.Equal(t, uint64(2), room.Frames())
}

type fakeRx struct {
	since time.Duration
	ok    bool
}

func (f fakeRx) SecondsSinceRx() (time.Duration, bool) {
	return f.since, f.ok
}

func TestSilentFor(t *testing.T) {
	started := time.Now().Add(-10 * time.Second)

	assert.Equal(t, 2*time.Second, silentFor(fakeRx{since: 2 * time.Second, ok: true}, started))
	assert.GreaterOrEqual(t, silentFor(fakeRx{}, started), 10*time.Second, "до первого пакета отсчет от запуска")
}

func TestWaitForSilence(t *testing.T) {
	t.Run("тишина", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		reason := waitForSilence(ctx, fakeRx{since: time.Minute, ok: true}, time.Second, time.Now())
		assert.Equal(t, "silence", reason)
	})

	t.Run("сигнал", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		// Нулевой таймаут отключает проверку тишины
		reason := waitForSilence(ctx, fakeRx{since: time.Hour, ok: true}, 0, time.Now())
		assert.Equal(t, "signal", reason)
	})
}

func TestDigestCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"digest",
		"--method", "REGISTER",
		"--uri", "sip:pbx.example.com",
		"--user", "100",
		"--pass", "secret",
		"--challenge", `Digest realm="pbx", nonce="abc123"`,
	})

	require.NoError(t, cmd.Execute())

	header := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(header, `Digest username="100", realm="pbx", nonce="abc123", uri="sip:pbx.example.com", response="`))
	assert.NotContains(t, header, "qop=")
}

func TestDigestCommand_RequiresChallenge(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"digest", "--uri", "sip:pbx.example.com"})

	assert.Error(t, cmd.Execute())
}
