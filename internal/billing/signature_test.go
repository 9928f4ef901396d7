package billing

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

const testSecret = "whsec_test_secret"

func TestVerifySignatureValid(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)
	now := time.Now()
	header := SignPayload(payload, testSecret, now)

	if err := VerifySignature(payload, header, testSecret, 5*time.Minute, now); err != nil {
		t.Errorf("expected valid signature, got %v", err)
	}
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := SignPayload(payload, "whsec_other", now)

	err := VerifySignature(payload, header, testSecret, 5*time.Minute, now)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignatureTamperedPayload(t *testing.T) {
	now := time.Now()
	header := SignPayload([]byte(`{"amount":100}`), testSecret, now)

	err := VerifySignature([]byte(`{"amount":999}`), header, testSecret, 5*time.Minute, now)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignatureStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	signedAt := time.Now().Add(-10 * time.Minute)
	header := SignPayload(payload, testSecret, signedAt)

	err := VerifySignature(payload, header, testSecret, 5*time.Minute, time.Now())
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Errorf("expected ErrStaleTimestamp, got %v", err)
	}
}

func TestVerifySignatureFutureTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := SignPayload(payload, testSecret, now.Add(10*time.Minute))

	err := VerifySignature(payload, header, testSecret, 5*time.Minute, now)
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Errorf("expected ErrStaleTimestamp for future timestamp, got %v", err)
	}
}

func TestVerifySignatureZeroToleranceSkipsAgeCheck(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	signedAt := time.Now().Add(-24 * time.Hour)
	header := SignPayload(payload, testSecret, signedAt)

	if err := VerifySignature(payload, header, testSecret, 0, time.Now()); err != nil {
		t.Errorf("zero tolerance must disable the age check, got %v", err)
	}
}

func TestVerifySignatureMultipleCandidates(t *testing.T) {
	// Secret rotation sends the signature under both keys; any match
	// passes.
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	good := SignPayload(payload, testSecret, now)
	header := fmt.Sprintf("%s,v1=deadbeef", good)

	if err := VerifySignature(payload, header, testSecret, 5*time.Minute, now); err != nil {
		t.Errorf("expected any matching v1 to pass, got %v", err)
	}
}

func TestVerifySignatureMalformedHeader(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()

	tests := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"missing timestamp", "v1=deadbeef"},
		{"missing signature", "t=1700000000"},
		{"bad timestamp", "t=notanumber,v1=deadbeef"},
		{"junk", "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(payload, tt.header, testSecret, 5*time.Minute, now)
			if !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}

func TestVerifySignatureNonHexCandidateSkipped(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	good := SignPayload(payload, testSecret, now)

	// A non-hex candidate before the real one must not abort matching.
	header := fmt.Sprintf("t=%d,v1=zzzz,%s", now.Unix(), good[len(fmt.Sprintf("t=%d,", now.Unix())):])
	if err := VerifySignature(payload, header, testSecret, 5*time.Minute, now); err != nil {
		t.Errorf("expected non-hex candidates to be skipped, got %v", err)
	}
}
