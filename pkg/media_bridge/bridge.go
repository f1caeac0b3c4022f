// Package media_bridge соединяет телефонный RTP поток G.711 с аудио треком
// конференц-комнаты.
//
// Мост владеет одним UDP сокетом. Входящее направление (телефон -> комната)
// обслуживают две горутины: чтение сокета и обработка пакетов, связанные
// ограниченной очередью. Исходящее направление (комната -> телефон) выполняется
// синхронно в SendToRTP под мьютексом и не блокируется на сети.
//
// Жизненный цикл:
//
//	created --start_inbound--> inbound_active
//	created | inbound_active --stop--> stopped
//
// Исходящее направление независимо: пока удаленный адрес неизвестен, кадры
// копятся в ограниченном буфере и отправляются при первом SetRemoteEndpoint.
package media_bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arzzra/phone_bridge/pkg/media"
	"github.com/arzzra/phone_bridge/pkg/rtp"
	"github.com/looplab/fsm"
)

// Состояния жизненного цикла моста
const (
	StateCreated       = "created"
	StateInboundActive = "inbound_active"
	StateStopped       = "stopped"

	eventStartInbound = "start_inbound"
	eventStop         = "stop"
)

// Ошибки одного пакета логируются с уровнем Warn для первой и каждой errorLogEvery-й
const errorLogEvery = 100

// Stats счетчики моста
type Stats struct {
	PacketsReceived uint64
	BytesReceived   uint64
	PacketsSent     uint64
	BytesSent       uint64

	DecodeErrors   uint64
	SendErrors     uint64
	SinkErrors     uint64
	ShortDatagrams uint64
	QueueDrops     uint64
	PendingDrops   uint64
	PendingFrames  int

	FirstRxAt time.Time
	FirstTxAt time.Time
	LastRxAt  time.Time
}

type datagram struct {
	data []byte
	from *net.UDPAddr
}

type counters struct {
	packetsReceived atomic.Uint64
	bytesReceived   atomic.Uint64
	packetsSent     atomic.Uint64
	bytesSent       atomic.Uint64
	decodeErrors    atomic.Uint64
	sendErrors      atomic.Uint64
	sinkErrors      atomic.Uint64
	shortDatagrams  atomic.Uint64
	queueDrops      atomic.Uint64
	pendingDrops    atomic.Uint64
}

// Bridge RTP мост одного звонка
type Bridge struct {
	config  Config
	logger  *slog.Logger
	metrics *Metrics

	conn      *net.UDPConn
	localPort int
	publicIP  string

	lifecycle   *fsm.FSM
	lifecycleMu sync.Mutex
	stopOnce    sync.Once
	stopped     atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	queue  chan datagram
	source AudioSource

	processor *media.AudioProcessor

	// Исходящее состояние
	outMu      sync.Mutex
	remote     *net.UDPAddr
	endpoint   RemoteEndpoint
	packetizer *rtp.Packetizer
	pending    *pendingFrames

	timesMu   sync.Mutex
	firstRxAt time.Time
	firstTxAt time.Time
	lastRxAt  time.Time

	stats counters
}

// New открывает RTP сокет на config.LocalPort и создает мост.
// SSRC, начальные sequence number и timestamp выбираются случайно.
func New(config Config) (*Bridge, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "media_bridge"))

	conn, err := rtp.ListenUDP(context.Background(), config.LocalPort, config.socketConfig())
	if err != nil {
		return nil, media.WrapMediaError(media.ErrorCodeNetwork, "",
			fmt.Sprintf("не удалось открыть RTP порт %d", config.LocalPort), err)
	}
	localPort := conn.LocalAddr().(*net.UDPAddr).Port
	logger = logger.With(slog.Int("port", localPort))

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		config:    config,
		logger:    logger,
		metrics:   config.Metrics,
		conn:      conn,
		localPort: localPort,
		publicIP:  config.PublicIP,
		ctx:       ctx,
		cancel:    cancel,
		processor: media.NewAudioProcessor(media.AudioProcessorConfig{
			SIPRate:     media.SampleRateSIP,
			RoomRate:    media.SampleRateRoom,
			InboundGain: config.InboundGain,
		}),
		packetizer: rtp.NewRandomPacketizer(),
		pending:    newPendingFrames(config.PendingFrames),
	}
	b.initStateMachine()

	rcvbuf, err := rtp.ReceiveBufferSize(conn)
	if err != nil {
		logger.Debug("Не удалось прочитать SO_RCVBUF", slog.String("error", err.Error()))
	}
	logger.Info("RTP сокет открыт",
		slog.String("bind", conn.LocalAddr().String()),
		slog.String("advertised", net.JoinHostPort(b.publicIP, strconv.Itoa(localPort))),
		slog.Int("rcvbuf", rcvbuf),
		slog.Uint64("ssrc", uint64(b.packetizer.SSRC())))

	b.metrics.bridgeStarted()
	return b, nil
}

func (b *Bridge) initStateMachine() {
	b.lifecycle = fsm.NewFSM(
		StateCreated,
		fsm.Events{
			{Name: eventStartInbound, Src: []string{StateCreated}, Dst: StateInboundActive},
			{Name: eventStop, Src: []string{StateCreated, StateInboundActive}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				b.logger.Debug("Состояние моста изменено",
					slog.String("from", e.Src),
					slog.String("to", e.Dst))
			},
		},
	)
}

// LocalPort возвращает фактический порт сокета
func (b *Bridge) LocalPort() int {
	return b.localPort
}

// PublicIP возвращает адрес, объявляемый в SDP
func (b *Bridge) PublicIP() string {
	return b.publicIP
}

// State возвращает текущее состояние жизненного цикла
func (b *Bridge) State() string {
	return b.lifecycle.Current()
}

// RemoteEndpoint возвращает удаленный адрес, если он уже установлен
func (b *Bridge) RemoteEndpoint() (RemoteEndpoint, bool) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	return b.endpoint, b.remote != nil
}

// SetRemoteEndpoint устанавливает адрес удаленной стороны и кодек.
// При первом вызове накопленные кадры отправляются в порядке поступления.
// Повторный вызов (re-INVITE) меняет адрес и кодек без повторной отправки буфера.
func (b *Bridge) SetRemoteEndpoint(ip string, port int, payloadType uint8) error {
	if b.stopped.Load() {
		return nil
	}

	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsUnspecified() {
		return media.NewMediaError(media.ErrorCodeConfiguration,
			fmt.Sprintf("некорректный удаленный IP: %q", ip))
	}
	if port <= 0 || port > 65535 {
		return media.NewMediaError(media.ErrorCodeConfiguration,
			fmt.Sprintf("некорректный удаленный порт: %d", port))
	}
	if !media.IsSupportedPayloadType(payloadType) {
		return media.NewMediaError(media.ErrorCodeUnsupportedPayloadType,
			fmt.Sprintf("payload type %d не поддерживается", payloadType))
	}

	b.outMu.Lock()
	defer b.outMu.Unlock()

	if b.stopped.Load() {
		return nil
	}

	first := b.remote == nil
	b.remote = &net.UDPAddr{IP: parsed, Port: port}
	b.endpoint = RemoteEndpoint{IP: ip, Port: port, PayloadType: payloadType}

	b.logger.Info("Удаленный адрес установлен",
		slog.String("remote", b.remote.String()),
		slog.String("codec", media.PayloadTypeName(payloadType)),
		slog.Bool("first", first))

	if first {
		b.flushPendingLocked()
	}
	return nil
}

// StartInbound публикует трек в комнату и запускает прием RTP.
// Повторный запуск возвращает ошибку; после Stop вызов ничего не делает.
func (b *Bridge) StartInbound(ctx context.Context, room Room) error {
	if room == nil {
		return media.NewMediaError(media.ErrorCodeConfiguration, "room не может быть nil")
	}

	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()

	if b.stopped.Load() {
		return nil
	}
	if !b.lifecycle.Can(eventStartInbound) {
		return media.NewMediaError(media.ErrorCodeBridgeState,
			fmt.Sprintf("прием нельзя запустить в состоянии %s", b.lifecycle.Current()))
	}

	source, err := room.PublishAudioTrack(ctx, TrackOptions{
		Name:        b.config.TrackName,
		SampleRate:  media.SampleRateRoom,
		NumChannels: 1,
		Source:      TrackSourceMicrophone,
	})
	if err != nil {
		return media.WrapMediaError(media.ErrorCodeBridgeState, "", "не удалось опубликовать аудио трек", err)
	}

	if err := b.lifecycle.Event(context.Background(), eventStartInbound); err != nil {
		return media.WrapMediaError(media.ErrorCodeBridgeState, "", "ошибка перехода состояния", err)
	}

	b.source = source
	b.queue = make(chan datagram, b.config.RecvQueueSize)

	b.wg.Add(2)
	go b.readLoop()
	go b.consumeLoop()

	b.logger.Info("Прием RTP запущен",
		slog.String("track", b.config.TrackName),
		slog.String("listen", b.conn.LocalAddr().String()))
	return nil
}

// readLoop блокируется в ReadFromUDP до прихода данных или закрытия сокета
func (b *Bridge) readLoop() {
	defer b.wg.Done()

	buf := make([]byte, rtp.MaxDatagramSize)
	for {
		n, from, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			if rtp.IsClosedError(err) || b.ctx.Err() != nil {
				b.logger.Debug("Чтение RTP завершено")
				return
			}
			b.logger.Warn("Ошибка чтения RTP сокета", slog.String("error", err.Error()))
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case b.queue <- datagram{data: data, from: from}:
		default:
			count := b.stats.queueDrops.Add(1)
			b.metrics.queueDrop()
			b.logPacketError(count, "Очередь приема переполнена, датаграмма отброшена")
		}
	}
}

// consumeLoop обрабатывает принятые датаграммы.
// Тикер периодически проверяет флаг остановки, если контекст не отменен.
func (b *Bridge) consumeLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.RecvPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			if b.stopped.Load() {
				return
			}
		case dg := <-b.queue:
			b.handleDatagram(dg)
		}
	}
}

func (b *Bridge) handleDatagram(dg datagram) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Паника при обработке RTP пакета",
				slog.Any("panic", r),
				slog.Int("size", len(dg.data)))
		}
	}()

	if len(dg.data) <= media.RTPHeaderSize {
		b.stats.shortDatagrams.Add(1)
		b.metrics.shortDatagram()
		return
	}

	packet, err := rtp.ParsePacket(dg.data)
	if err != nil {
		count := b.stats.decodeErrors.Add(1)
		b.metrics.decodeError()
		b.logPacketError(count, "Некорректный RTP пакет", slog.String("error", err.Error()))
		return
	}

	b.markReceived(dg, packet.PayloadType, packet.SSRC)

	pcm, err := b.processor.ProcessIncoming(packet.PayloadType, packet.Payload)
	if err != nil {
		count := b.stats.decodeErrors.Add(1)
		b.metrics.decodeError()
		b.logPacketError(count, "Ошибка декодирования RTP", slog.String("error", err.Error()))
		return
	}
	if len(pcm) == 0 {
		return
	}

	frame := media.AudioFrame{
		Samples:     pcm,
		SampleRate:  media.SampleRateRoom,
		NumChannels: 1,
	}
	if err := b.source.CaptureFrame(b.ctx, frame); err != nil {
		if b.ctx.Err() != nil {
			return
		}
		count := b.stats.sinkErrors.Add(1)
		b.metrics.sinkError()
		b.logPacketError(count, "Ошибка передачи кадра в комнату", slog.String("error", err.Error()))
	}
}

func (b *Bridge) markReceived(dg datagram, payloadType uint8, ssrc uint32) {
	now := time.Now()
	b.stats.packetsReceived.Add(1)
	b.stats.bytesReceived.Add(uint64(len(dg.data)))
	b.metrics.received(len(dg.data))

	b.timesMu.Lock()
	first := b.firstRxAt.IsZero()
	if first {
		b.firstRxAt = now
	}
	b.lastRxAt = now
	b.timesMu.Unlock()

	if first {
		b.logger.Info("Первый входящий RTP пакет",
			slog.String("from", dg.from.String()),
			slog.Int("size", len(dg.data)),
			slog.String("codec", media.PayloadTypeName(payloadType)),
			slog.Uint64("ssrc", uint64(ssrc)))
	}
}

// SendToRTP отправляет кадр комнаты удаленной стороне пакетами по 20ms.
// До установки удаленного адреса кадр сохраняется в буфере (старые вытесняются).
// Ошибки сети логируются и учитываются в статистике, но не возвращаются.
func (b *Bridge) SendToRTP(frame media.AudioFrame) error {
	if b.stopped.Load() {
		return nil
	}
	if err := frame.Validate(); err != nil {
		return err
	}

	b.outMu.Lock()
	defer b.outMu.Unlock()

	if b.stopped.Load() {
		return nil
	}

	if b.remote == nil {
		if b.pending.push(frame) {
			count := b.stats.pendingDrops.Add(1)
			b.metrics.pendingDrop()
			if count == 1 {
				b.logger.Warn("Буфер кадров до ответа переполнен, старые кадры вытесняются",
					slog.Int("capacity", b.config.PendingFrames))
			}
		}
		return nil
	}

	b.flushPendingLocked()
	return b.sendFrameLocked(frame)
}

func (b *Bridge) flushPendingLocked() {
	frames := b.pending.drain()
	if len(frames) == 0 {
		return
	}
	b.logger.Debug("Отправка накопленных кадров", slog.Int("frames", len(frames)))
	for _, frame := range frames {
		if err := b.sendFrameLocked(frame); err != nil {
			b.logger.Warn("Накопленный кадр отброшен", slog.String("error", err.Error()))
		}
	}
}

func (b *Bridge) sendFrameLocked(frame media.AudioFrame) error {
	pt := b.endpoint.PayloadType
	payloads, err := b.processor.ProcessOutgoing(frame, pt)
	if err != nil {
		return err
	}

	for _, payload := range payloads {
		data, err := b.packetizer.Next(pt, payload)
		if err != nil {
			count := b.stats.sendErrors.Add(1)
			b.metrics.sendError()
			b.logPacketError(count, "Ошибка формирования RTP пакета", slog.String("error", err.Error()))
			continue
		}

		n, err := b.conn.WriteToUDP(data, b.remote)
		if err != nil {
			count := b.stats.sendErrors.Add(1)
			b.metrics.sendError()
			b.logPacketError(count, "Ошибка отправки RTP",
				slog.String("remote", b.remote.String()),
				slog.String("error", err.Error()))
			continue
		}

		b.stats.bytesSent.Add(uint64(n))
		b.metrics.sent(n)
		if b.stats.packetsSent.Add(1) == 1 {
			b.timesMu.Lock()
			b.firstTxAt = time.Now()
			b.timesMu.Unlock()
			b.logger.Info("Первый исходящий RTP пакет",
				slog.String("remote", b.remote.String()),
				slog.Int("payload", len(payload)),
				slog.Duration("ptime", media.Ptime))
		}
	}
	return nil
}

// SecondsSinceRx возвращает время с последнего входящего пакета по монотонным часам.
// До первого пакета второй результат false.
func (b *Bridge) SecondsSinceRx() (time.Duration, bool) {
	b.timesMu.Lock()
	last := b.lastRxAt
	b.timesMu.Unlock()

	if last.IsZero() {
		return 0, false
	}
	return time.Since(last), true
}

// Stats возвращает снимок счетчиков моста
func (b *Bridge) Stats() Stats {
	b.outMu.Lock()
	pending := b.pending.length()
	b.outMu.Unlock()

	b.timesMu.Lock()
	firstRx, firstTx, lastRx := b.firstRxAt, b.firstTxAt, b.lastRxAt
	b.timesMu.Unlock()

	return Stats{
		PacketsReceived: b.stats.packetsReceived.Load(),
		BytesReceived:   b.stats.bytesReceived.Load(),
		PacketsSent:     b.stats.packetsSent.Load(),
		BytesSent:       b.stats.bytesSent.Load(),
		DecodeErrors:    b.stats.decodeErrors.Load(),
		SendErrors:      b.stats.sendErrors.Load(),
		SinkErrors:      b.stats.sinkErrors.Load(),
		ShortDatagrams:  b.stats.shortDatagrams.Load(),
		QueueDrops:      b.stats.queueDrops.Load(),
		PendingDrops:    b.stats.pendingDrops.Load(),
		PendingFrames:   pending,
		FirstRxAt:       firstRx,
		FirstTxAt:       firstTx,
		LastRxAt:        lastRx,
	}
}

// Stop останавливает мост: отменяет прием, закрывает сокет и ждет горутины.
// Повторные вызовы ничего не делают.
func (b *Bridge) Stop() {
	b.stopOnce.Do(b.stop)
}

func (b *Bridge) stop() {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()

	b.stopped.Store(true)
	if err := b.lifecycle.Event(context.Background(), eventStop); err != nil {
		b.logger.Debug("Переход в stopped", slog.String("error", err.Error()))
	}

	b.cancel()

	// Под outMu, чтобы не закрыть сокет посреди отправки
	b.outMu.Lock()
	if err := b.conn.Close(); err != nil {
		b.logger.Debug("Ошибка закрытия RTP сокета", slog.String("error", err.Error()))
	}
	b.outMu.Unlock()

	b.wg.Wait()
	b.metrics.bridgeStopped()

	rx := b.stats.packetsReceived.Load()
	tx := b.stats.packetsSent.Load()
	b.logger.Info("RTP мост остановлен",
		slog.Uint64("rx", rx),
		slog.Uint64("tx", tx),
		slog.Uint64("decode_errors", b.stats.decodeErrors.Load()),
		slog.Uint64("send_errors", b.stats.sendErrors.Load()))

	if rx == 0 {
		b.logger.Warn("Не получено ни одного входящего RTP пакета. Возможные причины: "+
			"неверный public_ip (нужен внешний IP сервера); "+
			"UDP порт закрыт файрволом для медиа адресов оператора; "+
			"диапазон портов пересекается с другим сервисом (например, медиа сервер SIP с портами 10000-40000); "+
			"оператор направляет медиа на другой адрес",
			slog.String("public_ip", b.publicIP),
			slog.Int("port", b.localPort))
	}
}

// logPacketError пишет Warn для первой и каждой errorLogEvery-й ошибки, остальные в Debug
func (b *Bridge) logPacketError(count uint64, msg string, attrs ...any) {
	attrs = append(attrs, slog.Uint64("count", count))
	if count == 1 || count%errorLogEvery == 0 {
		b.logger.Warn(msg, attrs...)
		return
	}
	b.logger.Debug(msg, attrs...)
}
