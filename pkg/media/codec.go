package media

import (
	"github.com/zaf/g711"
)

// EncodeG711 кодирует 16-битный PCM в G.711.
// PCMA кодируется A-law, любой другой payload type μ-law.
func EncodeG711(pt uint8, samples []int16) []byte {
	out := make([]byte, len(samples))
	if pt == PayloadTypePCMA {
		for i, s := range samples {
			out[i] = g711.EncodeAlawFrame(s)
		}
		return out
	}
	for i, s := range samples {
		out[i] = g711.EncodeUlawFrame(s)
	}
	return out
}

// DecodeG711 декодирует G.711 payload в 16-битный PCM.
func DecodeG711(pt uint8, payload []byte) []int16 {
	out := make([]int16, len(payload))
	if pt == PayloadTypePCMA {
		for i, b := range payload {
			out[i] = g711.DecodeAlawFrame(b)
		}
		return out
	}
	for i, b := range payload {
		out[i] = g711.DecodeUlawFrame(b)
	}
	return out
}

// SilenceByte возвращает код тишины для кодека
func SilenceByte(pt uint8) byte {
	if pt == PayloadTypePCMA {
		return 0xD5
	}
	return 0xFF
}

// ApplyGain умножает сэмплы на gain с насыщением в пределах int16.
// Изменяет срез на месте.
func ApplyGain(samples []int16, gain float64) []int16 {
	if gain == 1 {
		return samples
	}
	for i, s := range samples {
		v := float64(s) * gain
		switch {
		case v > 32767:
			samples[i] = 32767
		case v < -32768:
			samples[i] = -32768
		default:
			samples[i] = int16(v)
		}
	}
	return samples
}

// DownmixToMono усредняет перемежающиеся каналы в один.
func DownmixToMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(samples[i*channels+c])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}
