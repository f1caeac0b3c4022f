package media

import (
	"fmt"
	"time"
)

// Константы телефонного аудио и RTP кадрирования
const (
	RTPHeaderSize = 12 // Фиксированный заголовок без CSRC и расширений

	PayloadTypePCMU uint8 = 0 // G.711 μ-law
	PayloadTypePCMA uint8 = 8 // G.711 A-law

	SampleRateSIP  = 8000  // Частота G.711
	SampleRateRoom = 48000 // Частота аудио трека комнаты

	// 20ms при 8kHz: 160 сэмплов, 320 байт 16-битного PCM, 160 байт G.711
	Ptime        = 20 * time.Millisecond
	PtimeSamples = 160
	PtimeBytes   = PtimeSamples * 2

	DefaultPendingFrames = 300 // ~6 секунд 20ms кадров
	DefaultInboundGain   = 3.0 // После G.711 декодирования телефонный сигнал тихий
)

// AudioFrame блок 16-битного PCM, которым мост обменивается с комнатой.
// Для многоканального аудио сэмплы перемежаются (L R L R ...).
type AudioFrame struct {
	Samples     []int16
	SampleRate  int
	NumChannels int
}

// SamplesPerChannel возвращает число сэмплов на канал
func (f AudioFrame) SamplesPerChannel() int {
	if f.NumChannels <= 0 {
		return 0
	}
	return len(f.Samples) / f.NumChannels
}

// Duration возвращает длительность кадра
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.SamplesPerChannel()) * time.Second / time.Duration(f.SampleRate)
}

// Validate проверяет параметры кадра
func (f AudioFrame) Validate() error {
	if f.SampleRate <= 0 {
		return NewMediaError(ErrorCodeAudioFrameInvalid,
			fmt.Sprintf("некорректная частота дискретизации: %d", f.SampleRate))
	}
	if f.NumChannels <= 0 {
		return NewMediaError(ErrorCodeAudioFrameInvalid,
			fmt.Sprintf("некорректное число каналов: %d", f.NumChannels))
	}
	if len(f.Samples)%f.NumChannels != 0 {
		return NewMediaError(ErrorCodeAudioFrameInvalid,
			fmt.Sprintf("число сэмплов %d не кратно числу каналов %d", len(f.Samples), f.NumChannels))
	}
	return nil
}

// Clone возвращает копию кадра с собственным буфером сэмплов
func (f AudioFrame) Clone() AudioFrame {
	samples := make([]int16, len(f.Samples))
	copy(samples, f.Samples)
	f.Samples = samples
	return f
}

// PayloadTypeName возвращает имя кодека для rtpmap
func PayloadTypeName(pt uint8) string {
	switch pt {
	case PayloadTypePCMU:
		return "PCMU"
	case PayloadTypePCMA:
		return "PCMA"
	default:
		return fmt.Sprintf("PT%d", pt)
	}
}

// IsSupportedPayloadType проверяет, что payload type относится к G.711
func IsSupportedPayloadType(pt uint8) bool {
	return pt == PayloadTypePCMU || pt == PayloadTypePCMA
}
