package models

// ErrorContext describes the HTTP exchange that failed.
type ErrorContext struct {
	RequestURL   string `json:"request_url"`
	Method       string `json:"method"`
	HTTPStatus   int    `json:"http_status"`
	ResponseBody string `json:"response_body"`
}

type ErrorReport struct {
	TsUTC        string        `json:"ts_utc,omitempty"`
	Platform     string        `json:"platform"`
	AppVersion   string        `json:"app_version,omitempty"`
	ErrorMessage string        `json:"error_message"`
	Stacktrace   string        `json:"stacktrace,omitempty"`
	ContextJSON  *ErrorContext `json:"context_json,omitempty"`
	DeviceInfo   string        `json:"device_info,omitempty"`
	RequestID    string        `json:"request_id,omitempty"`
}
