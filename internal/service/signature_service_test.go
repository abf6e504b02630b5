package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_Verify(t *testing.T) {
	svc := NewHMACSignatureService()
	canonical := svc.BuildCanonicalString("POST", "/payouts", 1708092000, "tr-1", `{"account":"alice","amount":100}`)
	valid := svc.Sign("payout-secret", canonical)

	assert.Regexp(t, `^[0-9a-f]{64}$`, valid)
	assert.Equal(t, valid, svc.Sign("payout-secret", canonical))

	tests := []struct {
		name      string
		secret    string
		payload   string
		signature string
		want      bool
	}{
		{"matching", "payout-secret", canonical, valid, true},
		{"other secret", "webhook-secret", canonical, valid, false},
		{"amount changed", "payout-secret", svc.BuildCanonicalString("POST", "/payouts", 1708092000, "tr-1", `{"account":"alice","amount":1000}`), valid, false},
		{"garbage signature", "payout-secret", canonical, "not-hex", false},
		{"empty signature", "payout-secret", canonical, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.Verify(tt.secret, tt.payload, tt.signature))
		})
	}
}

func TestHMACSignatureService_BuildCanonicalString(t *testing.T) {
	svc := NewHMACSignatureService()

	assert.Equal(t, `POST|/payouts|1708092000|tr-1|{"amount":5}`,
		svc.BuildCanonicalString("POST", "/payouts", 1708092000, "tr-1", `{"amount":5}`))
	// webhook deliveries sign the journal sequence number in the nonce slot
	assert.Equal(t, "POST|/hook|1708092000|12|",
		svc.BuildCanonicalString("POST", "/hook", 1708092000, "12", ""))
}
