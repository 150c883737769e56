package models

// UploadResult is returned by POST /upload on success.
type UploadResult struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// ErrorResult is the body of every JSON error response.
type ErrorResult struct {
	ErrorMessage string `json:"error_message"`
}

// StatusData is the payload of StatusResult.
type StatusData struct {
	Status      string `json:"status"`
	DownloadURL string `json:"downloadUrl"`
}

// StatusResult is returned by POST /check-file-status.
type StatusResult struct {
	ErrCode int        `json:"errCode"`
	Data    StatusData `json:"data"`
}
