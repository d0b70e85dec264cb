package types

// InstallRequest is the body of POST /packages/install
type InstallRequest struct {
	Path string `json:"path" binding:"required"`
}

// TransactionResponse reports the outcome of an install or uninstall.
// Pending is set when the caller stopped waiting before the terminal result.
type TransactionResponse struct {
	TransactionID string `json:"transaction_id"`
	Package       string `json:"package"`
	Code          int32  `json:"code"`
	Message       string `json:"message"`
	Pending       bool   `json:"pending,omitempty"`
}

// ErrorResponse is returned by every failed query
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    int32  `json:"code"`
}
