// Package media содержит общий аудио слой телефонного моста.
//
// Пакет описывает кадры PCM, которыми мост обменивается с конференц-комнатой,
// и цепочки преобразований между ними и G.711:
//
//   - входящее направление: G.711 -> PCM 8kHz -> усиление -> PCM 48kHz
//   - исходящее направление: PCM комнаты -> моно -> 8kHz -> 20ms кадры -> G.711
//
// # Кодеки
//
// Поддерживаются только PCMU (payload type 0) и PCMA (payload type 8).
// Кодирование выполняет github.com/zaf/g711.
//
// # Передискретизация
//
// Resampler использует линейную интерполяцию с целочисленной фазой. Состояние
// сохраняется между вызовами, поэтому поток можно подавать кадрами любой длины.
//
// # Кадрирование
//
// AudioProcessor накапливает исходящие сэмплы и выдает payload только целыми
// 20ms блоками (160 сэмплов при 8kHz). Остаток ждет следующего кадра.
//
//	processor := media.NewAudioProcessor(media.DefaultAudioProcessorConfig())
//	payloads, err := processor.ProcessOutgoing(frame, media.PayloadTypePCMA)
//	if err != nil {
//	    return err
//	}
//	for _, payload := range payloads {
//	    // payload: ровно 160 байт G.711
//	}
//
// # Ошибки
//
// Все ошибки пакета имеют тип *MediaError с кодом MediaErrorCode.
// Проверка кода выполняется через HasErrorCode, в том числе для обернутых ошибок:
//
//	if media.HasErrorCode(err, media.ErrorCodeResourceExhausted) {
//	    // отклонить звонок
//	}
package media
