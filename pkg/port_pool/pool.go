// Package port_pool выделяет UDP порты для RTP мостов.
//
// Пул содержит четные порты диапазона [start, end). Нечетный порт, следующий за
// выделенным, остается за RTCP. Выделение возвращает наименьший свободный порт
// и никогда не блокируется: исчерпанный пул сразу возвращает ошибку.
//
// Глобального экземпляра нет, вызывающая сторона создает пул и передает его
// компонентам, которым он нужен.
package port_pool

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/arzzra/phone_bridge/pkg/media"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// DefaultRangeStart начало диапазона по умолчанию.
	// Диапазон не должен пересекаться с RTP портами медиа сервера на том же хосте.
	DefaultRangeStart = 31000

	// DefaultRangeEnd конец диапазона по умолчанию (не включается)
	DefaultRangeEnd = 31100

	minPort = 1024
	maxPort = 65536
)

// PortPool потокобезопасный пул четных RTP портов
type PortPool struct {
	start int
	end   int

	available []int // Отсортированы по возрастанию
	allocated map[int]bool
	mutex     sync.Mutex

	logger *slog.Logger
}

// PortPair пара портов RTP/RTCP
type PortPair struct {
	RTP  int
	RTCP int
}

// Option настраивает пул при создании
type Option func(*PortPool) error

// WithLogger задает логгер пула
func WithLogger(logger *slog.Logger) Option {
	return func(p *PortPool) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// WithRegisterer регистрирует метрики занятости пула
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *PortPool) error {
		if reg == nil {
			return nil
		}
		factory := promauto.With(reg)
		labels := prometheus.Labels{"range": fmt.Sprintf("%d-%d", p.start, p.end)}
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "phone_bridge_port_pool_free_ports",
			Help:        "Количество свободных RTP портов в пуле",
			ConstLabels: labels,
		}, func() float64 { return float64(p.Available()) })
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "phone_bridge_port_pool_in_use_ports",
			Help:        "Количество выделенных RTP портов",
			ConstLabels: labels,
		}, func() float64 { return float64(p.InUse()) })
		return nil
	}
}

// New создает пул четных портов диапазона [start, end).
// Если start нечетный, используется следующий четный порт.
func New(start, end int, opts ...Option) (*PortPool, error) {
	if start < minPort || end > maxPort || start >= end {
		return nil, media.NewMediaError(media.ErrorCodeConfiguration,
			fmt.Sprintf("некорректный диапазон портов [%d, %d)", start, end)).
			WithContext("start", start).
			WithContext("end", end)
	}

	pool := &PortPool{
		start:     start,
		end:       end,
		allocated: make(map[int]bool),
		logger:    slog.Default().With(slog.String("component", "port_pool")),
	}

	first := start
	if first%2 != 0 {
		first++
	}
	for port := first; port < end; port += 2 {
		pool.available = append(pool.available, port)
	}
	if len(pool.available) == 0 {
		return nil, media.NewMediaError(media.ErrorCodeConfiguration,
			fmt.Sprintf("диапазон [%d, %d) не содержит четных портов", start, end))
	}

	for _, opt := range opts {
		if err := opt(pool); err != nil {
			return nil, err
		}
	}

	pool.logger.Debug("Пул портов создан",
		slog.Int("start", start),
		slog.Int("end", end),
		slog.Int("capacity", len(pool.available)))

	return pool, nil
}

// Acquire выделяет наименьший свободный порт.
// При исчерпании пула сразу возвращает ошибку ErrorCodeResourceExhausted.
func (p *PortPool) Acquire() (int, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.available) == 0 {
		return 0, media.NewMediaError(media.ErrorCodeResourceExhausted,
			fmt.Sprintf("нет свободных RTP портов в диапазоне [%d, %d): расширьте диапазон или уменьшите число одновременных звонков",
				p.start, p.end)).
			WithContext("in_use", len(p.allocated))
	}

	port := p.available[0]
	p.available = p.available[1:]
	p.allocated[port] = true

	p.logger.Debug("Порт выделен", slog.Int("port", port), slog.Int("free", len(p.available)))
	return port, nil
}

// Release возвращает порт в пул. Повторное освобождение ничего не делает.
// Порты вне диапазона и нечетные порты игнорируются.
func (p *PortPool) Release(port int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if port < p.start || port >= p.end || port%2 != 0 {
		p.logger.Warn("Попытка освободить порт не из пула",
			slog.Int("port", port),
			slog.Int("start", p.start),
			slog.Int("end", p.end))
		return
	}

	if !p.allocated[port] {
		return
	}
	delete(p.allocated, port)

	// Вставляем с сохранением порядка, чтобы Acquire оставался O(1)
	idx, _ := slices.BinarySearch(p.available, port)
	p.available = slices.Insert(p.available, idx, port)

	p.logger.Debug("Порт освобожден", slog.Int("port", port), slog.Int("free", len(p.available)))
}

// Available возвращает количество свободных портов
func (p *PortPool) Available() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.available)
}

// InUse возвращает количество выделенных портов
func (p *PortPool) InUse() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.allocated)
}

// Range возвращает границы диапазона [start, end)
func (p *PortPool) Range() (int, int) {
	return p.start, p.end
}

// Pair возвращает пару RTP/RTCP для выделенного порта
func Pair(port int) PortPair {
	return PortPair{RTP: port, RTCP: port + 1}
}
