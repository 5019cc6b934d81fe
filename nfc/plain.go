package nfc

import (
	"context"
)

// PlainAuthenticator is for development cards that expose the eMRTD files
// without access control. PACE is reported as unsupported so the engine
// falls back to BAC, which then passes the card through unprotected.
type PlainAuthenticator struct{}

func (PlainAuthenticator) PACE(_ context.Context, _ Transceiver, _ SecretKey, _ PACEInfo) (Session, error) {
	return nil, &StatusError{Op: "GENERAL AUTHENTICATE", SW: SWFunctionNotSupported}
}

func (PlainAuthenticator) BAC(ctx context.Context, card Transceiver, _ SecretKey) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return plainSession{card: card}, nil
}

// plainSession forwards commands unchanged. Closing it leaves the card open;
// the engine closes the transceiver itself.
type plainSession struct {
	card Transceiver
}

func (s plainSession) Transmit(cmd []byte) ([]byte, error) {
	return s.card.Transmit(cmd)
}

func (s plainSession) Close() error {
	return nil
}
