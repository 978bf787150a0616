package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("order store: %w", errs.NotFound("order %s not found", "abc"))

	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.False(t, errors.Is(err, errs.ErrValidation))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.Equal(t, "order store: order abc not found", err.Error())
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, errs.Kind(""), errs.KindOf(errors.New("boom")))
}

func TestSentinelsDoNotMatchEachOther(t *testing.T) {
	assert.False(t, errors.Is(errs.ErrInvalidState, errs.ErrInsufficientFunds))
	assert.True(t, errors.Is(errs.InvalidState("x"), errs.ErrInvalidState))
}
