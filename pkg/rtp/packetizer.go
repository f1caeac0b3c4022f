package rtp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/arzzra/phone_bridge/pkg/media"
	"github.com/pion/rtp"
)

const (
	// ExpectedRTPVersion версия RTP согласно RFC 3550
	ExpectedRTPVersion = 2

	// MaxRTPPacketSize максимальный размер RTP пакета, укладывающийся в MTU
	MaxRTPPacketSize = 1500
)

// Packetizer формирует исходящий RTP поток одного SSRC.
// Перед каждым пакетом sequence number увеличивается на 1, timestamp на 160 (20ms при 8kHz).
// Маркер выставляется только на первом пакете потока.
//
// Packetizer не потокобезопасен, владелец синхронизирует вызовы сам.
type Packetizer struct {
	ssrc             uint32
	sequenceNumber   uint16
	timestamp        uint32
	samplesPerPacket uint32
	sent             uint64
}

// NewPacketizer создает packetizer с заданными начальными значениями.
// Первый пакет получит seq+1 и ts+160.
func NewPacketizer(ssrc uint32, seq uint16, ts uint32) *Packetizer {
	return &Packetizer{
		ssrc:             ssrc,
		sequenceNumber:   seq,
		timestamp:        ts,
		samplesPerPacket: media.PtimeSamples,
	}
}

// NewRandomPacketizer создает packetizer со случайными SSRC, seq и timestamp (RFC 3550 Appendix A.6)
func NewRandomPacketizer() *Packetizer {
	var seed struct {
		SSRC      uint32
		Sequence  uint16
		Timestamp uint32
	}
	_ = binary.Read(rand.Reader, binary.BigEndian, &seed)
	return NewPacketizer(seed.SSRC, seed.Sequence, seed.Timestamp)
}

// Next сериализует следующий RTP пакет с payload одного 20ms кадра
func (p *Packetizer) Next(payloadType uint8, payload []byte) ([]byte, error) {
	if payloadType > 127 {
		return nil, fmt.Errorf("невалидный payload type: %d (максимум 127)", payloadType)
	}

	p.sequenceNumber++
	p.timestamp += p.samplesPerPacket

	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        ExpectedRTPVersion,
			Marker:         p.sent == 0, // Начало talkspurt
			PayloadType:    payloadType,
			SequenceNumber: p.sequenceNumber,
			Timestamp:      p.timestamp,
			SSRC:           p.ssrc,
		},
		Payload: payload,
	}

	data, err := packet.Marshal()
	if err != nil {
		return nil, fmt.Errorf("ошибка маршалинга RTP пакета: %w", err)
	}
	if len(data) > MaxRTPPacketSize {
		return nil, fmt.Errorf("пакет слишком велик: %d байт (максимум %d)", len(data), MaxRTPPacketSize)
	}

	p.sent++
	return data, nil
}

// SSRC возвращает идентификатор источника
func (p *Packetizer) SSRC() uint32 {
	return p.ssrc
}

// SequenceNumber возвращает sequence number последнего пакета
func (p *Packetizer) SequenceNumber() uint16 {
	return p.sequenceNumber
}

// Timestamp возвращает timestamp последнего пакета
func (p *Packetizer) Timestamp() uint32 {
	return p.timestamp
}

// PacketsSent возвращает количество сформированных пакетов
func (p *Packetizer) PacketsSent() uint64 {
	return p.sent
}
