package nfc

import (
	"fmt"
)

// Stage names shared by the engine, the logs and the diagnostic report.
const (
	StageConnect         = "connect"
	StageAppletSelection = "applet_selection"
	StageCardAccess      = "card_access"
	StagePACE            = "pace_authentication"
	StageBAC             = "bac_authentication"
	StageCOMRead         = "com_read"
	StageDG1Read         = "dg1_read"
	StageDG2Read         = "dg2_read"
	StageDGValidation    = "dg_validation"
)

// DataGroupReader reads elementary files over an authenticated session.
type DataGroupReader struct{}

// ReadFile selects the EF and streams it with READ BINARY.
func (DataGroupReader) ReadFile(session Session, fid uint16) ([]byte, error) {
	if err := selectFile(session, fid); err != nil {
		return nil, err
	}
	data, err := readTransparent(session, fmt.Sprintf("EF %04X", fid), 0)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ReadCOM reads and parses EF.COM.
func (r DataGroupReader) ReadCOM(session Session) (*COM, error) {
	raw, err := r.ReadFile(session, FIDCOM)
	if err != nil {
		return nil, err
	}
	return ParseCOM(raw)
}

// dataGroups holds the bytes gathered in the read phase.
type dataGroups struct {
	dg1, dg2 []byte
	com      *COM
}

// readAll reads EF.COM (best effort), DG1 and DG2. On error the stage that
// failed is returned with it.
func (r DataGroupReader) readAll(session Session, a *attempt) (*dataGroups, string, error) {
	out := &dataGroups{}

	a.log.Stage(StageCOMRead)
	com, err := r.ReadCOM(session)
	if err != nil {
		a.warn(StageError{Stage: StageCOMRead, SW: ExtractSWCode(err), Message: err.Error()})
	} else {
		out.com = com
	}

	a.log.Stage(StageDG1Read)
	if out.dg1, err = r.ReadFile(session, FIDDG1); err != nil {
		return nil, StageDG1Read, fmt.Errorf("DG1 read failed: %w", err)
	}

	a.log.Stage(StageDG2Read)
	if out.dg2, err = r.ReadFile(session, FIDDG2); err != nil {
		return nil, StageDG2Read, fmt.Errorf("DG2 read failed: %w", err)
	}
	return out, "", nil
}
