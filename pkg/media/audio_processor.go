package media

import (
	"fmt"
	"sync"
)

// AudioProcessor выполняет транскодирование для одного моста в обе стороны:
//   - входящее (телефон -> комната): G.711 -> PCM 8kHz -> усиление -> 48kHz
//   - исходящее (комната -> телефон): моно -> 8kHz -> накопление -> 20ms G.711
//
// Состояние resampler'ов и накопитель PCM принадлежат процессору, поэтому
// фаза ресемплинга непрерывна между пакетами. Направления защищены отдельными
// мьютексами и не блокируют друг друга.
type AudioProcessor struct {
	config AudioProcessorConfig

	inMutex     sync.Mutex
	inResampler *Resampler
	inStats     directionStats

	outMutex     sync.Mutex
	outResampler *Resampler
	outRate      int
	accumulator  []int16
	outStats     directionStats
}

// AudioProcessorConfig содержит параметры транскодирования.
type AudioProcessorConfig struct {
	SIPRate     int     // Частота G.711 (8000)
	RoomRate    int     // Частота трека комнаты (48000)
	InboundGain float64 // Множитель после декодирования
}

// DefaultAudioProcessorConfig возвращает конфигурацию по умолчанию для телефонии:
// 8kHz G.711, 48kHz в комнату, усиление x3.
func DefaultAudioProcessorConfig() AudioProcessorConfig {
	return AudioProcessorConfig{
		SIPRate:     SampleRateSIP,
		RoomRate:    SampleRateRoom,
		InboundGain: DefaultInboundGain,
	}
}

type directionStats struct {
	packets uint64
	samples uint64
}

// NewAudioProcessor создает процессор; нулевые параметры заменяются значениями по умолчанию.
func NewAudioProcessor(config AudioProcessorConfig) *AudioProcessor {
	if config.SIPRate == 0 {
		config.SIPRate = SampleRateSIP
	}
	if config.RoomRate == 0 {
		config.RoomRate = SampleRateRoom
	}
	if config.InboundGain == 0 {
		config.InboundGain = DefaultInboundGain
	}

	return &AudioProcessor{
		config:      config,
		inResampler: NewResampler(config.SIPRate, config.RoomRate),
		accumulator: make([]int16, 0, PtimeSamples*2),
	}
}

// ProcessIncoming декодирует payload входящего RTP пакета в моно PCM частоты комнаты.
func (ap *AudioProcessor) ProcessIncoming(pt uint8, payload []byte) ([]int16, error) {
	if len(payload) == 0 {
		return nil, NewMediaError(ErrorCodeDecode, "пустой RTP payload").
			WithContext("payload_type", pt)
	}

	ap.inMutex.Lock()
	defer ap.inMutex.Unlock()

	pcm := DecodeG711(pt, payload)
	pcm = ApplyGain(pcm, ap.config.InboundGain)
	out := ap.inResampler.Process(pcm)

	ap.inStats.packets++
	ap.inStats.samples += uint64(len(out))
	return out, nil
}

// ProcessOutgoing принимает кадр комнаты и возвращает готовые G.711 payload'ы по 20ms.
// Остаток меньше 20ms сохраняется до следующего вызова.
func (ap *AudioProcessor) ProcessOutgoing(frame AudioFrame, pt uint8) ([][]byte, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	if !IsSupportedPayloadType(pt) {
		return nil, NewMediaError(ErrorCodeUnsupportedPayloadType,
			fmt.Sprintf("payload type %d не поддерживается", pt))
	}

	ap.outMutex.Lock()
	defer ap.outMutex.Unlock()

	// Resampler пересоздается только при смене частоты источника
	if ap.outResampler == nil || ap.outRate != frame.SampleRate {
		ap.outResampler = NewResampler(frame.SampleRate, ap.config.SIPRate)
		ap.outRate = frame.SampleRate
	}

	mono := DownmixToMono(frame.Samples, frame.NumChannels)
	ap.accumulator = append(ap.accumulator, ap.outResampler.Process(mono)...)

	var payloads [][]byte
	for len(ap.accumulator) >= PtimeSamples {
		payloads = append(payloads, EncodeG711(pt, ap.accumulator[:PtimeSamples]))
		ap.accumulator = ap.accumulator[PtimeSamples:]
	}
	// Сдвигаем остаток в начало, чтобы буфер не рос бесконечно
	if len(payloads) > 0 {
		ap.accumulator = append(ap.accumulator[:0:0], ap.accumulator...)
	}

	ap.outStats.packets += uint64(len(payloads))
	ap.outStats.samples += uint64(len(payloads) * PtimeSamples)
	return payloads, nil
}

// Pending возвращает число накопленных, но еще не отправленных сэмплов 8kHz
func (ap *AudioProcessor) Pending() int {
	ap.outMutex.Lock()
	defer ap.outMutex.Unlock()
	return len(ap.accumulator)
}

// GetStatistics возвращает статистику аудио процессора
func (ap *AudioProcessor) GetStatistics() AudioProcessorStatistics {
	ap.inMutex.Lock()
	in := ap.inStats
	ap.inMutex.Unlock()

	ap.outMutex.Lock()
	out := ap.outStats
	pending := len(ap.accumulator)
	ap.outMutex.Unlock()

	return AudioProcessorStatistics{
		PacketsIn:      in.packets,
		SamplesIn:      in.samples,
		PacketsOut:     out.packets,
		SamplesOut:     out.samples,
		PendingSamples: pending,
		InboundGain:    ap.config.InboundGain,
		SIPSampleRate:  ap.config.SIPRate,
		RoomSampleRate: ap.config.RoomRate,
	}
}

// AudioProcessorStatistics статистика аудио процессора
type AudioProcessorStatistics struct {
	PacketsIn      uint64 // Декодировано входящих пакетов
	SamplesIn      uint64 // Выдано сэмплов в комнату
	PacketsOut     uint64 // Сформировано исходящих payload'ов
	SamplesOut     uint64
	PendingSamples int
	InboundGain    float64
	SIPSampleRate  int
	RoomSampleRate int
}
