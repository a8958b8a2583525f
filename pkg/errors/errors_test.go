package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "error with status code",
			err:      &Error{Type: ErrorTypeServerError, Message: "upstream unavailable", Code: 503},
			expected: "server_error error (code 503): upstream unavailable",
		},
		{
			name:     "error without status code",
			err:      New(ErrorTypeTimestamp, "cannot interpret value"),
			expected: "timestamp error: cannot interpret value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(ErrorTypeNetwork, "request failed", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, IsType(err, ErrorTypeNetwork))
	assert.False(t, IsType(err, ErrorTypeAuth))
}

func TestIsTypeSeesThroughWrapping(t *testing.T) {
	inner := New(ErrorTypeTimestamp, "bad value")
	outer := fmt.Errorf("resolving note: %w", inner)

	assert.True(t, IsType(outer, ErrorTypeTimestamp))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeTimestamp))
}

func TestIsRetryable(t *testing.T) {
	retryable := []ErrorType{ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError}
	for _, et := range retryable {
		assert.True(t, IsRetryable(et), "expected %s to be retryable", et)
	}

	permanent := []ErrorType{
		ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeFeed,
		ErrorTypeTimestamp, ErrorTypeIdentity, ErrorTypeAssetFetch,
		ErrorTypeStorage, ErrorTypeMetadata, ErrorTypeConfig, ErrorTypeUnknown,
	}
	for _, et := range permanent {
		assert.False(t, IsRetryable(et), "expected %s to be permanent", et)
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(500))
	assert.True(t, IsRetryableStatusCode(502))
	assert.True(t, IsRetryableStatusCode(599))
	assert.False(t, IsRetryableStatusCode(401))
	assert.False(t, IsRetryableStatusCode(403))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(400))
}
