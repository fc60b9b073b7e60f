package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrRunInProgress", ErrRunInProgress},
		{"ErrSourceUnavailable", ErrSourceUnavailable},
		{"ErrMalformedRow", ErrMalformedRow},
		{"ErrWriteFailure", ErrWriteFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestErrors_Distinct tests that data errors are distinguishable from write failures
func TestErrors_Distinct(t *testing.T) {
	wrapped := fmt.Errorf("fetch user turns: %w", ErrSourceUnavailable)

	assert.True(t, errors.Is(wrapped, ErrSourceUnavailable))
	assert.False(t, errors.Is(wrapped, ErrWriteFailure))
	assert.False(t, errors.Is(ErrMalformedRow, ErrSourceUnavailable))
}
