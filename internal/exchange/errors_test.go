package exchange

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"breakbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStatus(t *testing.T) {
	assert.NoError(t, FromStatus(http.StatusOK, "200 OK"))
	assert.ErrorIs(t, FromStatus(http.StatusTooManyRequests, "429"), ErrRateLimited)
	assert.ErrorIs(t, FromStatus(http.StatusBadGateway, "502"), ErrTransient)
	assert.ErrorIs(t, FromStatus(http.StatusNotFound, "404"), ErrBadResponse)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(Transient(errors.New("timeout"))))
	assert.True(t, IsTransient(FromStatus(http.StatusTooManyRequests, "429")))
	assert.False(t, IsTransient(BadResponse("retCode=%d", 10001)))
	assert.False(t, IsTransient(nil))

	assert.Equal(t, "rate_limited", Kind(FromStatus(http.StatusTooManyRequests, "429")))
	assert.Equal(t, "bad_response", Kind(BadResponse("x")))
	assert.Equal(t, "other", Kind(errors.New("x")))
}

func TestPaperExecutor(t *testing.T) {
	fill, err := PaperExecutor{}.Execute(context.Background(), models.Order{Qty: 2, Price: 101.5})
	require.NoError(t, err)
	assert.Equal(t, models.Fill{Price: 101.5, Qty: 2}, fill)

	_, err = PaperExecutor{}.Execute(context.Background(), models.Order{})
	assert.ErrorIs(t, err, ErrBadResponse)
}
