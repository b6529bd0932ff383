package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignature_SignDeterministic(t *testing.T) {
	svc := NewHMACSignatureService()

	sig1 := svc.Sign("whsec_test", "payload")
	sig2 := svc.Sign("whsec_test", "payload")
	assert.Equal(t, sig1, sig2)
	assert.Len(t, sig1, 64) // hex-encoded SHA-256
}

func TestHMACSignature_VerifyRoundTrip(t *testing.T) {
	svc := NewHMACSignatureService()

	sig := svc.Sign("whsec_test", "1712000000.{}")
	assert.True(t, svc.Verify("whsec_test", "1712000000.{}", sig))
}

func TestHMACSignature_VerifyRejectsTampering(t *testing.T) {
	svc := NewHMACSignatureService()
	sig := svc.Sign("whsec_test", "1712000000.{}")

	assert.False(t, svc.Verify("whsec_test", "1712000000.{tampered}", sig))
	assert.False(t, svc.Verify("whsec_other", "1712000000.{}", sig))
	assert.False(t, svc.Verify("whsec_test", "1712000000.{}", "deadbeef"))
}

func TestHMACSignature_BuildSignedPayload(t *testing.T) {
	svc := NewHMACSignatureService()
	assert.Equal(t, `1712000000.{"id":"evt_1"}`, svc.BuildSignedPayload(1712000000, `{"id":"evt_1"}`))
}
