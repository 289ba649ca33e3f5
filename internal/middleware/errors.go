package middleware

// ErrorResponse mirrors api.ErrorResponse; it is redefined here to avoid an
// import cycle between the two packages.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
