package media

import (
	"errors"
	"fmt"
)

// MediaErrorCode определяет типизированные коды ошибок медиа моста.
// Коды сгруппированы по тому, как с ошибкой поступает вызывающий код:
// фатальные при создании звонка, исчерпание ресурсов и ошибки отдельного пакета.
type MediaErrorCode int

const (
	// Фатальные при создании
	ErrorCodeConfiguration MediaErrorCode = iota + 1000
	ErrorCodeResourceExhausted

	// Ошибки отдельного пакета, поток не прерывается
	ErrorCodeDecode
	ErrorCodeNetwork

	// Не возвращается вызывающему, только логируется
	ErrorCodeAuthChallengeParse

	// Ошибки использования API
	ErrorCodeAudioFrameInvalid
	ErrorCodeUnsupportedPayloadType
	ErrorCodeBridgeState
	ErrorCodeSDPInvalid
)

// String возвращает строковое представление кода ошибки
func (code MediaErrorCode) String() string {
	switch code {
	case ErrorCodeConfiguration:
		return "Configuration"
	case ErrorCodeResourceExhausted:
		return "ResourceExhausted"
	case ErrorCodeDecode:
		return "Decode"
	case ErrorCodeNetwork:
		return "Network"
	case ErrorCodeAuthChallengeParse:
		return "AuthChallengeParse"
	case ErrorCodeAudioFrameInvalid:
		return "AudioFrameInvalid"
	case ErrorCodeUnsupportedPayloadType:
		return "UnsupportedPayloadType"
	case ErrorCodeBridgeState:
		return "BridgeState"
	case ErrorCodeSDPInvalid:
		return "SDPInvalid"
	default:
		return fmt.Sprintf("Unknown(%d)", int(code))
	}
}

// MediaError базовая структура ошибок медиа слоя.
// Содержит:
//   - Типизированный код ошибки
//   - Контекстную информацию (порт, диапазон, payload type)
//   - Обернутую исходную ошибку
//   - Идентификатор сессии для сопоставления с логами
type MediaError struct {
	Code      MediaErrorCode
	Message   string
	SessionID string
	Context   map[string]interface{}
	Wrapped   error
}

// NewMediaError создает ошибку с кодом и сообщением.
func NewMediaError(code MediaErrorCode, message string) *MediaError {
	return &MediaError{Code: code, Message: message}
}

// Error реализует интерфейс error
func (e *MediaError) Error() string {
	msg := e.Message
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	if e.SessionID != "" {
		return fmt.Sprintf("[медиа:%s] сессия %s: %s", e.Code, e.SessionID, msg)
	}
	return fmt.Sprintf("[медиа:%s] %s", e.Code, msg)
}

// Unwrap возвращает обернутую ошибку
func (e *MediaError) Unwrap() error {
	return e.Wrapped
}

// Is позволяет сравнивать ошибки по коду через errors.Is.
func (e *MediaError) Is(target error) bool {
	if t, ok := target.(*MediaError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext добавляет значение в контекст ошибки и возвращает ее же.
func (e *MediaError) WithContext(key string, value interface{}) *MediaError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetContext возвращает значение из контекста ошибки по ключу.
func (e *MediaError) GetContext(key string) interface{} {
	if e.Context == nil {
		return nil
	}
	return e.Context[key]
}

// WrapMediaError оборачивает существующую ошибку в MediaError
func WrapMediaError(code MediaErrorCode, sessionID, message string, err error) *MediaError {
	return &MediaError{
		Code:      code,
		Message:   message,
		SessionID: sessionID,
		Wrapped:   err,
	}
}

// HasErrorCode проверяет, содержит ли цепочка ошибок указанный код
func HasErrorCode(err error, code MediaErrorCode) bool {
	var mediaErr *MediaError
	if errors.As(err, &mediaErr) {
		return mediaErr.Code == code
	}
	return false
}

// IsRecoverableError определяет, переживает ли звонок эту ошибку.
// Ошибки отдельных пакетов и исчерпание портов (на уровне процесса) восстановимы,
// ошибки конфигурации нет.
func IsRecoverableError(err error) bool {
	var mediaErr *MediaError
	if !errors.As(err, &mediaErr) {
		return false
	}

	switch mediaErr.Code {
	case ErrorCodeDecode, ErrorCodeNetwork, ErrorCodeResourceExhausted, ErrorCodeAuthChallengeParse:
		return true
	default:
		return false
	}
}

// GetErrorSuggestion возвращает рекомендации по устранению ошибки
func GetErrorSuggestion(err error) string {
	var mediaErr *MediaError
	if !errors.As(err, &mediaErr) {
		return "Проверьте параметры вызова и логи"
	}

	switch mediaErr.Code {
	case ErrorCodeConfiguration:
		return "Укажите публичный IP сервера (не 0.0.0.0), он попадает в SDP c= строку"
	case ErrorCodeResourceExhausted:
		return "Расширьте диапазон RTP портов или уменьшите число одновременных звонков"
	case ErrorCodeNetwork:
		return "Проверьте правила firewall для UDP порта и маршрутизацию до удаленной стороны"
	case ErrorCodeAuthChallengeParse:
		return "Проверьте заголовок WWW-Authenticate/Proxy-Authenticate от SIP транка"
	case ErrorCodeUnsupportedPayloadType:
		return "Согласуйте в SDP PCMU (0) или PCMA (8)"
	default:
		return "Проверьте документацию API для данного типа ошибки"
	}
}
