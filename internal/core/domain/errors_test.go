package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedFormat", ErrUnsupportedFormat},
		{"ErrFileTooLarge", ErrFileTooLarge},
		{"ErrResourceUnavailable", ErrResourceUnavailable},
		{"ErrRateLimited", ErrRateLimited},
		{"ErrGenerationFailed", ErrGenerationFailed},
		{"ErrSessionExists", ErrSessionExists},
		{"ErrSessionNotFound", ErrSessionNotFound},
		{"ErrDimensionMismatch", ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestErrNotFound tests ErrNotFound error
func TestErrNotFound(t *testing.T) {
	assert.Equal(t, "not found", ErrNotFound.Error())
	assert.True(t, errors.Is(ErrNotFound, ErrNotFound))
	assert.False(t, errors.Is(ErrNotFound, ErrAlreadyExists))
}

func TestUnavailableErrors_MatchResourceUnavailable(t *testing.T) {
	for _, err := range []error{
		ErrSTTUnavailable,
		ErrDiarizerUnavailable,
		ErrEmbeddingUnavailable,
		ErrVectorStoreUnavailable,
		ErrLLMUnavailable,
	} {
		t.Run(err.Error(), func(t *testing.T) {
			assert.ErrorIs(t, err, ErrResourceUnavailable)
			assert.NotErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("load analysis %q: %w", "abc", ErrNotFound)
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.Contains(t, wrapped.Error(), "abc")
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{Provider: "openai", RetryAfter: 2 * time.Second, Message: "quota exceeded"}

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, "openai: rate limited: quota exceeded (retry after 2s)", err.Error())

	var rle *RateLimitError
	wrapped := fmt.Errorf("generate: %w", err)
	assert.True(t, errors.As(wrapped, &rle))
	assert.Equal(t, 2*time.Second, rle.RetryAfter)
}

func TestRateLimitError_NoDetails(t *testing.T) {
	err := &RateLimitError{Provider: "anthropic"}
	assert.Equal(t, "anthropic: rate limited", err.Error())
}

func TestRateLimitMessage(t *testing.T) {
	tests := []struct {
		lang     string
		contains string
	}{
		{"en", "usage limit"},
		{"es", "límite"},
		{"fr", "limite"},
		{"de", "Nutzungslimit"},
		{"pt-BR", "limite de uso"},
		{"ja", "上限"},
		{"zh", "限制"},
		{"", "usage limit"},
		{"xx", "usage limit"},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			assert.Contains(t, RateLimitMessage(tt.lang), tt.contains)
		})
	}
}
