package models

// UploadedFile describes a file stored on local disk by an upload request.
// Nothing about it is persisted besides the file itself.
type UploadedFile struct {
	Name         string `json:"filename"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	DiskPath     string `json:"-"`
	URL          string `json:"path"`
}
