package models

// ReadRequest starts a chip read on the operator server.
type ReadRequest struct {
	DocumentNumber string `json:"document_number"`
	DateOfBirth    string `json:"date_of_birth"`
	DateOfExpiry   string `json:"date_of_expiry"`
	// Submit forwards a successful read to the verification backend.
	Submit bool `json:"submit"`
	// IncludeFace adds a PNG preview of the face image to the response.
	IncludeFace bool `json:"include_face"`
}

type ReadResponse struct {
	ReportID    string `json:"report_id"`
	Status      string `json:"status"`
	Stage       string `json:"stage,omitempty"`
	SW          string `json:"sw,omitempty"`
	Message     string `json:"message"`
	Technical   string `json:"technical_message,omitempty"`
	Submitted   bool   `json:"submitted"`
	ScanID      string `json:"scan_id,omitempty"`
	SubmitError string `json:"submit_error,omitempty"`

	FacePreviewB64 string `json:"face_preview_b64,omitempty"`
}
