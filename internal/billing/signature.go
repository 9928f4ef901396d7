package billing

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

var (
	// ErrInvalidSignature is returned when no v1 signature in the header
	// matches the payload.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrStaleTimestamp is returned when the signed timestamp falls
	// outside the configured tolerance.
	ErrStaleTimestamp = errors.New("webhook timestamp outside tolerance")
)

// VerifySignature checks a provider webhook signature header against the
// raw payload. The header carries a unix timestamp and one or more HMAC
// signatures: "t=<ts>,v1=<hex>,v1=<hex>". The signed input is
// "<ts>.<payload>" with HMAC-SHA256 over the endpoint secret. The
// timestamp must be within tolerance of now to blunt replay.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	expected := mac.Sum(nil)

	matched := false
	for _, sig := range sigs {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			matched = true
			break
		}
	}
	if !matched {
		return ErrInvalidSignature
	}

	age := now.Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if tolerance > 0 && age > tolerance {
		return ErrStaleTimestamp
	}

	return nil
}

// parseSignatureHeader extracts the timestamp and v1 signatures from a
// "t=...,v1=...,v1=..." header.
func parseSignatureHeader(header string) (int64, []string, error) {
	var ts int64
	var sigs []string
	seenTS := false

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			ts = parsed
			seenTS = true
		case "v1":
			sigs = append(sigs, value)
		}
	}

	if !seenTS || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: missing timestamp or signature", ErrInvalidSignature)
	}
	return ts, sigs, nil
}

// SignPayload produces a signature header for the payload, used by tests
// and local tooling to forge valid webhook deliveries.
func SignPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
