package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/alekspetrov/shipbot/internal/testutil"
)

// signRequest computes a valid v0 signature for a body and timestamp
func signRequest(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("v0:%s:%s", timestamp, body)))
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// TestVerifierVerify tests signature verification
func TestVerifierVerify(t *testing.T) {
	secret := testutil.FakeSlackSigningSecret
	body := []byte("command=%2Fci&text=beta")
	now := strconv.FormatInt(time.Now().Unix(), 10)

	tests := []struct {
		name      string
		secret    string
		timestamp string
		signature string
		body      []byte
		want      bool
	}{
		{
			name:      "valid signature",
			secret:    secret,
			timestamp: now,
			signature: signRequest(secret, now, body),
			body:      body,
			want:      true,
		},
		{
			name:      "wrong signature",
			secret:    secret,
			timestamp: now,
			signature: "v0=deadbeef",
			body:      body,
			want:      false,
		},
		{
			name:      "signature for different body",
			secret:    secret,
			timestamp: now,
			signature: signRequest(secret, now, []byte("command=%2Fci&text=other")),
			body:      body,
			want:      false,
		},
		{
			name:      "stale timestamp",
			secret:    secret,
			timestamp: strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10),
			signature: signRequest(secret, strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10), body),
			body:      body,
			want:      false,
		},
		{
			name:      "future timestamp outside window",
			secret:    secret,
			timestamp: strconv.FormatInt(time.Now().Add(10*time.Minute).Unix(), 10),
			signature: signRequest(secret, strconv.FormatInt(time.Now().Add(10*time.Minute).Unix(), 10), body),
			body:      body,
			want:      false,
		},
		{
			name:      "malformed timestamp",
			secret:    secret,
			timestamp: "not-a-number",
			signature: signRequest(secret, "not-a-number", body),
			body:      body,
			want:      false,
		},
		{
			name:      "empty secret accepts everything",
			secret:    "",
			timestamp: "",
			signature: "",
			body:      body,
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(tt.secret)
			if got := v.Verify(tt.timestamp, tt.signature, tt.body); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}
