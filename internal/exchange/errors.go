package exchange

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrTransient - сеть, таймаут, 5xx. Ход по активу пропускается до следующего тика.
	ErrTransient = errors.New("временная ошибка биржи")
	// ErrRateLimited - 429 или код лимита в ответе.
	ErrRateLimited = errors.New("превышен лимит запросов")
	// ErrBadResponse - ответ не разобран или биржа вернула ошибку бизнес-уровня.
	ErrBadResponse = errors.New("некорректный ответ биржи")
)

func Transient(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

func BadResponse(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadResponse, fmt.Sprintf(format, args...))
}

// FromStatus классифицирует HTTP-статус; nil для 2xx.
func FromStatus(code int, status string) error {
	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, status)
	case code >= 500:
		return fmt.Errorf("%w: %s", ErrTransient, status)
	case code >= 300:
		return fmt.Errorf("%w: %s", ErrBadResponse, status)
	}
	return nil
}

// IsTransient: имеет смысл попробовать на следующем тике.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Kind - короткая метка для метрик и логов.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrBadResponse):
		return "bad_response"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return "transient"
	}
	return "other"
}
