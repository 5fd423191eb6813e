package dErrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUpstream, "dispatch failed")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUpstream, CodeOf(err))
}

func TestCodeOfUnwrapsChains(t *testing.T) {
	inner := New(CodeRateLimited, "user limit exceeded")
	outer := fmt.Errorf("pipeline: %w", inner)

	assert.Equal(t, CodeRateLimited, CodeOf(outer))
}

func TestCodeOfUnknownErrorIsInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestWithDetailDoesNotMutateOriginal(t *testing.T) {
	base := New(CodeRateLimited, "limit exceeded")
	derived := base.WithDetail("retry_after", 60)

	assert.Nil(t, base.Detail)
	assert.Equal(t, 60, derived.Detail["retry_after"])
}

func TestToHTTPStatus(t *testing.T) {
	cases := []struct {
		code   Code
		status int
	}{
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodePolicyDenied, http.StatusForbidden},
		{CodeContentBlocked, http.StatusBadRequest},
		{CodeCircuitOpen, http.StatusServiceUnavailable},
		{CodeUpstream, http.StatusBadGateway},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeInternal, http.StatusInternalServerError},
		{Code("unknown"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, ToHTTPStatus(tc.code), "code %s", tc.code)
	}
}
