package media_bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "phone_bridge"
	metricsSubsystem = "rtp"
)

// Metrics prometheus метрики мостов. Один экземпляр разделяется всеми мостами процесса.
// Методы безопасны для nil получателя.
type Metrics struct {
	packetsReceived prometheus.Counter
	bytesReceived   prometheus.Counter
	packetsSent     prometheus.Counter
	bytesSent       prometheus.Counter
	decodeErrors    prometheus.Counter
	sendErrors      prometheus.Counter
	sinkErrors      prometheus.Counter
	pendingDrops    prometheus.Counter
	queueDrops      prometheus.Counter
	shortDatagrams  prometheus.Counter
	activeBridges   prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		packetsReceived: counter("packets_received_total", "Принято RTP пакетов"),
		bytesReceived:   counter("bytes_received_total", "Принято байт RTP"),
		packetsSent:     counter("packets_sent_total", "Отправлено RTP пакетов"),
		bytesSent:       counter("bytes_sent_total", "Отправлено байт RTP"),
		decodeErrors:    counter("decode_errors_total", "Ошибки разбора и декодирования входящих пакетов"),
		sendErrors:      counter("send_errors_total", "Ошибки отправки RTP"),
		sinkErrors:      counter("sink_errors_total", "Ошибки передачи кадров в комнату"),
		pendingDrops:    counter("pending_drops_total", "Кадры, вытесненные из буфера до ответа"),
		queueDrops:      counter("queue_drops_total", "Датаграммы, отброшенные при переполнении очереди приема"),
		shortDatagrams:  counter("short_datagrams_total", "Датаграммы короче RTP заголовка с payload"),
		activeBridges: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "active_bridges",
			Help:      "Количество работающих мостов",
		}),
	}
}

func (m *Metrics) received(n int) {
	if m == nil {
		return
	}
	m.packetsReceived.Inc()
	m.bytesReceived.Add(float64(n))
}

func (m *Metrics) sent(n int) {
	if m == nil {
		return
	}
	m.packetsSent.Inc()
	m.bytesSent.Add(float64(n))
}

func (m *Metrics) bridgeStarted() {
	if m != nil {
		m.activeBridges.Inc()
	}
}

func (m *Metrics) bridgeStopped() {
	if m != nil {
		m.activeBridges.Dec()
	}
}

func (m *Metrics) decodeError() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *Metrics) sendError() {
	if m != nil {
		m.sendErrors.Inc()
	}
}

func (m *Metrics) sinkError() {
	if m != nil {
		m.sinkErrors.Inc()
	}
}

func (m *Metrics) pendingDrop() {
	if m != nil {
		m.pendingDrops.Inc()
	}
}

func (m *Metrics) queueDrop() {
	if m != nil {
		m.queueDrops.Inc()
	}
}

func (m *Metrics) shortDatagram() {
	if m != nil {
		m.shortDatagrams.Inc()
	}
}
