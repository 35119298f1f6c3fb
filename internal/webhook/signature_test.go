package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_RoundTrip(t *testing.T) {
	v := NewVerifier("shared-secret")
	body := []byte(`{"id": 1001, "email": "jane@example.com"}`)

	assert.NoError(t, v.Verify(body, v.Sign(body)))
}

func TestVerify_MissingSignature(t *testing.T) {
	v := NewVerifier("shared-secret")

	assert.ErrorIs(t, v.Verify([]byte(`{}`), ""), ErrMissingSignature)
	assert.ErrorIs(t, v.Verify([]byte(`{}`), "   "), ErrMissingSignature)
}

func TestVerify_WrongSecret(t *testing.T) {
	body := []byte(`{"id": 1001}`)
	signature := NewVerifier("secret-a").Sign(body)

	assert.ErrorIs(t, NewVerifier("secret-b").Verify(body, signature), ErrInvalidSignature)
}

func TestVerify_TamperedBody(t *testing.T) {
	v := NewVerifier("shared-secret")
	signature := v.Sign([]byte(`{"total_price": "49.90"}`))

	assert.ErrorIs(t, v.Verify([]byte(`{"total_price": "499.00"}`), signature), ErrInvalidSignature)
}

func TestVerify_GarbageSignature(t *testing.T) {
	v := NewVerifier("shared-secret")

	require.Error(t, v.Verify([]byte(`{}`), "not-a-digest"))
}
