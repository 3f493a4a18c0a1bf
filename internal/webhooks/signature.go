package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultStripeTolerance = 5 * time.Minute

var (
	ErrSignatureMissing = errors.New("signature_missing")
	ErrSignatureInvalid = errors.New("signature_invalid")
	ErrTimestampExpired = errors.New("signature_timestamp_expired")
)

func computeHmac(secret string, parts ...[]byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	for _, part := range parts {
		mac.Write(part)
	}
	return mac.Sum(nil)
}

// VerifyStripeSignature checks a Stripe-Signature header of the form
// t=<unix>,v1=<hex>[,v1=<hex>] against the raw payload
func VerifyStripeSignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	if header == "" {
		return ErrSignatureMissing
	}
	var timestamp string
	signatures := [][]byte{}
	for _, item := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			if decoded, err := hex.DecodeString(value); err == nil {
				signatures = append(signatures, decoded)
			}
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return ErrSignatureMissing
	}
	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrSignatureInvalid)
	}
	if tolerance <= 0 {
		tolerance = DefaultStripeTolerance
	}
	signedAt := time.Unix(unix, 0)
	if now.Sub(signedAt) > tolerance || signedAt.Sub(now) > tolerance {
		return ErrTimestampExpired
	}
	expected := computeHmac(secret, []byte(timestamp), []byte("."), payload)
	for _, signature := range signatures {
		if hmac.Equal(signature, expected) {
			return nil
		}
	}
	return ErrSignatureInvalid
}

// SignStripePayload produces a header VerifyStripeSignature accepts,
// used by tests and the replay command
func SignStripePayload(payload []byte, secret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(computeHmac(secret, []byte(timestamp), []byte("."), payload)))
}

// VerifyHubSignature checks an X-Hub-Signature-256 header of the form
// sha256=<hex> as sent by the WhatsApp Cloud API
func VerifyHubSignature(payload []byte, header, secret string) error {
	if header == "" {
		return ErrSignatureMissing
	}
	encoded, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return ErrSignatureInvalid
	}
	signature, err := hex.DecodeString(encoded)
	if err != nil {
		return ErrSignatureInvalid
	}
	if !hmac.Equal(signature, computeHmac(secret, payload)) {
		return ErrSignatureInvalid
	}
	return nil
}

func SignHubPayload(payload []byte, secret string) string {
	return "sha256=" + hex.EncodeToString(computeHmac(secret, payload))
}
