package media_bridge

import (
	"github.com/arzzra/phone_bridge/pkg/media"
)

// pendingFrames кольцевой буфер исходящих кадров до того, как станет известен
// удаленный адрес. При переполнении вытесняется самый старый кадр.
// Синхронизацию обеспечивает владелец (Bridge.outMu).
type pendingFrames struct {
	frames  []media.AudioFrame
	head    int
	size    int
	dropped uint64
}

func newPendingFrames(capacity int) *pendingFrames {
	return &pendingFrames{frames: make([]media.AudioFrame, capacity)}
}

// push добавляет копию кадра; возвращает true, если пришлось вытеснить старый
func (p *pendingFrames) push(frame media.AudioFrame) bool {
	frame = frame.Clone()
	capacity := len(p.frames)

	if p.size < capacity {
		p.frames[(p.head+p.size)%capacity] = frame
		p.size++
		return false
	}

	p.frames[p.head] = frame
	p.head = (p.head + 1) % capacity
	p.dropped++
	return true
}

// drain возвращает кадры в порядке поступления и опустошает буфер
func (p *pendingFrames) drain() []media.AudioFrame {
	if p.size == 0 {
		return nil
	}
	out := make([]media.AudioFrame, 0, p.size)
	for i := 0; i < p.size; i++ {
		idx := (p.head + i) % len(p.frames)
		out = append(out, p.frames[idx])
		p.frames[idx] = media.AudioFrame{}
	}
	p.head, p.size = 0, 0
	return out
}

func (p *pendingFrames) length() int {
	return p.size
}
