package security

import "time"

const (
	testSigningSecret   = "test-signing-secret"
	testTransportSecret = "test-transport-secret"
)

// NewTestCodecs returns a TokenCodec and a non-legacy TransportCipher with fixed test secrets.
// now, when non-nil, replaces the codec clock. For unit tests only.
func NewTestCodecs(now func() time.Time) (*TokenCodec, *TransportCipher, error) {
	codec, err := NewTokenCodec(testSigningSecret)
	if err != nil {
		return nil, nil, err
	}
	if now != nil {
		codec.now = now
	}
	transport, err := NewTransportCipher(testTransportSecret, false)
	if err != nil {
		return nil, nil, err
	}
	return codec, transport, nil
}
