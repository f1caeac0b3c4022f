package media

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaError(t *testing.T) {
	cause := errors.New("address already in use")
	err := WrapMediaError(ErrorCodeNetwork, "call-1", "не удалось открыть порт", cause).
		WithContext("port", 31000)

	assert.Equal(t, "[медиа:Network] сессия call-1: не удалось открыть порт: address already in use", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 31000, err.GetContext("port"))
	assert.Nil(t, err.GetContext("missing"))

	wrapped := fmt.Errorf("создание моста: %w", err)
	assert.True(t, HasErrorCode(wrapped, ErrorCodeNetwork))
	assert.False(t, HasErrorCode(wrapped, ErrorCodeDecode))
	assert.True(t, errors.Is(wrapped, NewMediaError(ErrorCodeNetwork, "")))
	assert.True(t, IsRecoverableError(wrapped))
	assert.Contains(t, GetErrorSuggestion(wrapped), "firewall")
}

func TestMediaErrorCode_String(t *testing.T) {
	assert.Equal(t, "ResourceExhausted", ErrorCodeResourceExhausted.String())
	assert.Equal(t, "Unknown(1)", MediaErrorCode(1).String())
}

func TestIsRecoverableError(t *testing.T) {
	assert.False(t, IsRecoverableError(NewMediaError(ErrorCodeConfiguration, "")))
	assert.True(t, IsRecoverableError(NewMediaError(ErrorCodeDecode, "")))
	assert.False(t, IsRecoverableError(errors.New("обычная ошибка")))
}
