package nfc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-passport-reader/document"
	"go-passport-reader/logging"
)

// DefaultTimeout bounds the connect phase and every card exchange.
const DefaultTimeout = 45 * time.Second

// StageInput is reported when the access keys are rejected before any I/O.
const StageInput = "input_validation"

// Authenticator performs the PACE and BAC handshakes. It receives the raw
// card and returns a Session that applies secure messaging.
type Authenticator interface {
	PACE(ctx context.Context, card Transceiver, key SecretKey, info PACEInfo) (Session, error)
	BAC(ctx context.Context, card Transceiver, key SecretKey) (Session, error)
}

// Engine drives one chip read: connect, select the eMRTD application,
// authenticate with PACE or BAC, then read the data groups.
type Engine struct {
	card    Transceiver
	auth    Authenticator
	reader  DataGroupReader
	pace    bool
	timeout time.Duration
	logger  *logging.NfcLogger
	now     func() time.Time
}

type Option func(*Engine)

// WithPACE enables or disables the PACE attempt. With PACE disabled, BAC
// failures are classified so that PACE-only documents report PACE_REQUIRED.
func WithPACE(enabled bool) Option {
	return func(e *Engine) { e.pace = enabled }
}

func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = logging.NewNfcLogger(l) }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(card Transceiver, auth Authenticator, opts ...Option) *Engine {
	e := &Engine{
		card:    card,
		auth:    auth,
		pace:    true,
		timeout: DefaultTimeout,
		logger:  logging.NewNfcLogger(nil),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// attempt collects what is known about a read while it progresses, so that
// both outcomes can be filled from the same facts.
type attempt struct {
	log           *logging.NfcLogger
	keys          AccessKeys
	method        AuthMethod
	paceOID       string
	paceSupported bool
	bacAttempted  bool
	chipInfo      string
	warnings      []StageError
}

func (a *attempt) warn(w StageError) {
	w.Message = a.log.Sanitize(w.Message)
	a.warnings = append(a.warnings, w)
}

// fail records a terminal failure. prefix is trusted text; the error text is
// redacted before it is stored.
func (a *attempt) fail(status Status, stage string, err error, prefix string) *Failure {
	sw := ExtractSWCode(err)
	a.log.Error(string(status), stage, sw, err)
	message := a.log.Sanitize(err.Error())
	if prefix != "" {
		message = prefix + ": " + message
	}
	f := NewFailure(status, stage, sw, message)
	f.Method = a.method
	f.PACEObjectID = a.paceOID
	f.PACESupported = a.paceSupported
	f.BACAttempted = a.bacAttempted
	f.ChipInfo = a.chipInfo
	f.Warnings = a.warnings
	return f
}

// Read performs one complete read attempt. It never retries; every
// non-success is returned as a terminal *Failure.
func (e *Engine) Read(ctx context.Context, keys AccessKeys) ReadOutcome {
	start := e.now()
	a := &attempt{log: e.logger.WithSecrets(keys.Secrets()...), keys: keys}
	a.log.SessionStart()

	outcome := e.read(ctx, a)
	elapsed := e.now().Sub(start)
	switch o := outcome.(type) {
	case *Success:
		o.Elapsed = elapsed
		a.log.Result(string(StatusSuccess), "", "", fmt.Sprintf("read completed using %s", o.Method))
	case *Failure:
		o.Elapsed = elapsed
		a.log.Result(string(o.Status()), o.Stage, o.SW, o.Message)
	}
	return outcome
}

func (e *Engine) read(ctx context.Context, a *attempt) ReadOutcome {
	if err := a.keys.Validate(); err != nil {
		return a.fail(StatusUnknownError, StageInput, err, "invalid access keys")
	}

	a.log.Stage(StageConnect)
	e.card.SetTimeout(e.timeout)
	connectCtx, cancel := context.WithTimeout(ctx, e.timeout)
	err := e.card.Connect(connectCtx)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, ErrNotISODep):
			return a.fail(StatusNFCNotISODep, StageConnect, err, "")
		case errors.Is(err, ErrNFCUnavailable), errors.Is(err, context.DeadlineExceeded):
			return a.fail(StatusNFCNotAvailable, StageConnect, err, "")
		default:
			return a.fail(StatusUnknownError, StageConnect, err, "connect failed")
		}
	}
	defer func() {
		if err := e.card.Close(); err != nil {
			slog.Debug("Failed to close transceiver", "error", a.log.Sanitize(err.Error()))
		}
	}()
	if d, ok := e.card.(ChipDescriber); ok {
		a.chipInfo = d.ChipInfo()
	}

	a.log.Stage(StageAppletSelection)
	if err := selectApplication(e.card, MRTDApplicationID); err != nil {
		return a.fail(StatusAppletSelectionFailed, StageAppletSelection, err, "eMRTD application selection failed")
	}

	session, failure := e.authenticate(ctx, a)
	if failure != nil {
		return failure
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Debug("Failed to close session", "error", a.log.Sanitize(err.Error()))
		}
	}()

	groups, stage, err := e.reader.readAll(session, a)
	if err != nil {
		return a.fail(StatusDGReadError, stage, err, "")
	}
	a.log.DataRead(len(groups.dg1), len(groups.dg2))

	a.log.Stage(StageDGValidation)
	success, err := NewSuccess(groups.dg1, groups.dg2, a.keys, a.method)
	if err != nil {
		return a.fail(StatusPartialRead, StageDGValidation, err, "")
	}
	success.PACEObjectID = a.paceOID
	success.PACESupported = a.paceSupported
	success.ChipInfo = a.chipInfo
	success.Warnings = a.warnings
	if groups.com != nil {
		success.Presence = groups.com.Presence()
		success.LDSVersion = groups.com.LDSVersion
	}
	return success
}

// authenticate runs PACE when EF.CardAccess offers it, and BAC otherwise or
// when the chip reports PACE as unsupported. A genuine PACE failure is
// terminal.
func (e *Engine) authenticate(ctx context.Context, a *attempt) (Session, *Failure) {
	var info *PACEInfo
	if e.pace {
		info = e.readCardAccess(a)
	}

	if info != nil {
		a.log.Stage(StagePACE)
		a.paceOID = info.ObjectID
		session, err := e.auth.PACE(ctx, e.card, a.keys.PACEKey(), *info)
		if err == nil {
			a.method = AuthPACE
			a.paceSupported = true
			return session, nil
		}
		sw := ExtractSWCode(err)
		if ClassifyPACESupport(sw, err.Error()) == PACESupported {
			a.paceSupported = true
			return nil, a.fail(StatusPACEFailed, StagePACE, err, "PACE authentication failed")
		}
		a.warn(StageError{Stage: StagePACE, SW: sw, Message: "PACE not supported, falling back to BAC: " + err.Error()})
	}

	a.log.Stage(StageBAC)
	a.bacAttempted = true
	session, err := e.auth.BAC(ctx, e.card, a.keys.BACKey())
	if err != nil {
		status := StatusBACFailed
		if !e.pace {
			status = ClassifyBACFailure(ExtractSWCode(err), err.Error())
		}
		prefix := fmt.Sprintf("BAC authentication failed (doc=%s)", document.MaskDocumentNumber(a.keys.DocumentNumber))
		return nil, a.fail(status, StageBAC, err, prefix)
	}
	a.method = AuthBAC
	return session, nil
}

// readCardAccess returns the first PACE descriptor, or nil. Problems are
// recorded as warnings only.
func (e *Engine) readCardAccess(a *attempt) *PACEInfo {
	a.log.Stage(StageCardAccess)
	raw, err := readTransparent(e.card, "EF.CardAccess", SFICardAccess)
	if err != nil {
		a.warn(StageError{Stage: StageCardAccess, SW: ExtractSWCode(err), Message: "EF.CardAccess unavailable: " + err.Error()})
		return nil
	}
	infos, err := ParseCardAccess(raw)
	if err != nil {
		a.warn(StageError{Stage: StageCardAccess, Message: "EF.CardAccess unreadable: " + err.Error()})
		return nil
	}
	if len(infos) == 0 {
		a.warn(StageError{Stage: StageCardAccess, Message: "no PACEInfo in EF.CardAccess"})
		return nil
	}
	return &infos[0]
}
