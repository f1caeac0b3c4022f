package media

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestG711RoundTrip(t *testing.T) {
	for _, pt := range []uint8{PayloadTypePCMU, PayloadTypePCMA} {
		t.Run(PayloadTypeName(pt), func(t *testing.T) {
			samples := make([]int16, 0, 512)
			for v := -32768; v <= 32767; v += 128 {
				samples = append(samples, int16(v))
			}

			encoded := EncodeG711(pt, samples)
			require.Len(t, encoded, len(samples))
			decoded := DecodeG711(pt, encoded)
			require.Len(t, decoded, len(samples))

			for i, s := range samples {
				// Логарифмическое квантование: ошибка растет с амплитудой, ~1/16 от значения
				tolerance := math.Abs(float64(s))/16 + 16
				assert.InDelta(t, float64(s), float64(decoded[i]), tolerance, "сэмпл %d", s)
			}
		})
	}
}

func TestSilenceByte(t *testing.T) {
	assert.Equal(t, byte(0xD5), SilenceByte(PayloadTypePCMA))
	assert.Equal(t, byte(0xFF), SilenceByte(PayloadTypePCMU))

	for _, pt := range []uint8{PayloadTypePCMU, PayloadTypePCMA} {
		encoded := EncodeG711(pt, make([]int16, PtimeSamples))
		for _, b := range encoded {
			require.Equal(t, SilenceByte(pt), b)
		}
	}
}

func TestDecodeG711_UnknownPayloadTypeIsMuLaw(t *testing.T) {
	payload := []byte{0x00, 0x7F, 0x80, 0xFF}
	assert.Equal(t, DecodeG711(PayloadTypePCMU, payload), DecodeG711(96, payload))
}

func TestApplyGain(t *testing.T) {
	tests := []struct {
		name string
		in   []int16
		gain float64
		want []int16
	}{
		{name: "усиление", in: []int16{100, -100, 0}, gain: 3, want: []int16{300, -300, 0}},
		{name: "насыщение сверху", in: []int16{20000}, gain: 3, want: []int16{32767}},
		{name: "насыщение снизу", in: []int16{-20000}, gain: 3, want: []int16{-32768}},
		{name: "без изменений", in: []int16{1234}, gain: 1, want: []int16{1234}},
		{name: "ослабление", in: []int16{1000}, gain: 0.5, want: []int16{500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyGain(tt.in, tt.gain))
		})
	}
}

func TestDownmixToMono(t *testing.T) {
	assert.Equal(t, []int16{150, -50}, DownmixToMono([]int16{100, 200, -100, 0}, 2))

	mono := []int16{1, 2, 3}
	assert.Equal(t, mono, DownmixToMono(mono, 1))

	// Сумма каналов не переполняет int16
	assert.Equal(t, []int16{32767}, DownmixToMono([]int16{32767, 32767}, 2))
}

func TestAudioFrame(t *testing.T) {
	t.Run("длительность", func(t *testing.T) {
		frame := AudioFrame{Samples: make([]int16, 960), SampleRate: SampleRateRoom, NumChannels: 1}
		assert.Equal(t, Ptime, frame.Duration())
		assert.Equal(t, 960, frame.SamplesPerChannel())

		stereo := AudioFrame{Samples: make([]int16, 960), SampleRate: SampleRateRoom, NumChannels: 2}
		assert.Equal(t, Ptime/2, stereo.Duration())
	})

	t.Run("валидация", func(t *testing.T) {
		tests := []struct {
			name  string
			frame AudioFrame
		}{
			{name: "нулевая частота", frame: AudioFrame{Samples: make([]int16, 10), NumChannels: 1}},
			{name: "нет каналов", frame: AudioFrame{Samples: make([]int16, 10), SampleRate: SampleRateRoom}},
			{name: "не кратно каналам", frame: AudioFrame{Samples: make([]int16, 3), SampleRate: SampleRateRoom, NumChannels: 2}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.frame.Validate()
				require.Error(t, err)
				assert.True(t, HasErrorCode(err, ErrorCodeAudioFrameInvalid))
			})
		}

		assert.NoError(t, AudioFrame{SampleRate: SampleRateSIP, NumChannels: 1}.Validate(), "пустой кадр допустим")
	})

	t.Run("копия", func(t *testing.T) {
		frame := AudioFrame{Samples: []int16{1, 2}, SampleRate: SampleRateSIP, NumChannels: 1}
		clone := frame.Clone()
		clone.Samples[0] = 99
		assert.Equal(t, int16(1), frame.Samples[0])
	})
}
