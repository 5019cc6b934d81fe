// Package pcsc connects the reader engine to contactless cards through a
// PC/SC reader.
package pcsc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebfe/scard"
	"github.com/gmrtd/gmrtd/utils"

	"go-passport-reader/nfc"
)

// pollInterval bounds each GetStatusChange call so ctx is checked regularly.
const pollInterval = 250 * time.Millisecond

// PC/SC part 3 registered application provider, present in the ATR of
// contactless storage cards that do not speak ISO 14443-4.
var storageCardRID = []byte{0xA0, 0x00, 0x00, 0x03, 0x06}

type Transceiver struct {
	// Reader restricts Connect to one reader name. Empty means the first
	// reader that sees a card.
	Reader string

	mu      sync.Mutex
	ctx     *scard.Context
	card    *scard.Card
	reader  string
	atr     []byte
	timeout time.Duration
}

func New(reader string) *Transceiver {
	return &Transceiver{Reader: reader}
}

func (t *Transceiver) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sctx, err := scard.EstablishContext()
	if err != nil {
		return fmt.Errorf("%w: failed to establish PC/SC context: %w", nfc.ErrNFCUnavailable, err)
	}

	readers, err := sctx.ListReaders()
	if err != nil || len(readers) == 0 {
		sctx.Release()
		if err == nil {
			err = errors.New("no readers attached")
		}
		return fmt.Errorf("%w: %w", nfc.ErrNFCUnavailable, err)
	}
	if t.Reader != "" {
		readers = filterReaders(readers, t.Reader)
		if len(readers) == 0 {
			sctx.Release()
			return fmt.Errorf("%w: reader %q not found", nfc.ErrNFCUnavailable, t.Reader)
		}
	}

	slog.Info("Waiting for a card", "readers", readers)
	index, err := waitUntilCardPresent(ctx, sctx, readers)
	if err != nil {
		sctx.Release()
		return err
	}

	card, err := sctx.Connect(readers[index], scard.ShareExclusive, scard.ProtocolAny)
	if err != nil {
		sctx.Release()
		return fmt.Errorf("failed to connect to card in %s: %w", readers[index], err)
	}
	status, err := card.Status()
	if err != nil {
		card.Disconnect(scard.LeaveCard)
		sctx.Release()
		return fmt.Errorf("failed to read card status: %w", err)
	}
	if !IsISODep(status.Atr) {
		card.Disconnect(scard.LeaveCard)
		sctx.Release()
		return fmt.Errorf("%w: ATR %s", nfc.ErrNotISODep, utils.BytesToHex(status.Atr))
	}

	t.ctx = sctx
	t.card = card
	t.reader = readers[index]
	t.atr = status.Atr
	slog.Debug("Card connected", "reader", t.reader, "atr", utils.BytesToHex(t.atr))
	return nil
}

// SetTimeout records the command timeout. PC/SC offers no per-command
// deadline, so Transmit reports commands that overran it.
func (t *Transceiver) SetTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = d
}

func (t *Transceiver) Transmit(cmd []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.card == nil {
		return nil, errors.New("card not connected")
	}

	start := time.Now()
	resp, err := t.card.Transmit(cmd)
	if err != nil {
		return nil, fmt.Errorf("transmit failed: %w", err)
	}
	if t.timeout > 0 && time.Since(start) > t.timeout {
		return nil, fmt.Errorf("transmit took longer than %s: %w", t.timeout, context.DeadlineExceeded)
	}
	return resp, nil
}

func (t *Transceiver) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	if t.card != nil {
		errs = append(errs, t.card.Disconnect(scard.ResetCard))
		t.card = nil
	}
	if t.ctx != nil {
		errs = append(errs, t.ctx.Release())
		t.ctx = nil
	}
	return errors.Join(errs...)
}

func (t *Transceiver) ChipInfo() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reader == "" {
		return ""
	}
	return fmt.Sprintf("reader=%s atr=%s", t.reader, utils.BytesToHex(t.atr))
}

// IsISODep reports whether an ATR belongs to an ISO 14443-4 card. Readers
// synthesize ATRs for contactless storage cards that carry the PC/SC RID.
func IsISODep(atr []byte) bool {
	if len(atr) < 2 {
		return false
	}
	return !bytes.Contains(atr, storageCardRID)
}

func filterReaders(readers []string, name string) []string {
	for _, r := range readers {
		if r == name {
			return []string{r}
		}
	}
	return nil
}

func waitUntilCardPresent(ctx context.Context, sctx *scard.Context, readers []string) (int, error) {
	rs := make([]scard.ReaderState, len(readers))
	for i := range rs {
		rs[i].Reader = readers[i]
		rs[i].CurrentState = scard.StateUnaware
	}

	for {
		for i := range rs {
			if rs[i].EventState&scard.StatePresent != 0 {
				return i, nil
			}
			rs[i].CurrentState = rs[i].EventState
		}
		if err := ctx.Err(); err != nil {
			return -1, fmt.Errorf("%w: no card presented: %w", nfc.ErrNFCUnavailable, err)
		}
		err := sctx.GetStatusChange(rs, pollInterval)
		if err != nil && !errors.Is(err, scard.ErrTimeout) {
			return -1, fmt.Errorf("%w: %w", nfc.ErrNFCUnavailable, err)
		}
	}
}
