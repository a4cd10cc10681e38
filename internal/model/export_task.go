package model

import "time"

// ExportJobMessage is the job handed to the pipeline. It must be JSON-serializable.
type ExportJobMessage struct {
	JobID       string           `json:"jobId"`
	Files       []ExportFileInfo `json:"files"`
	Email       string           `json:"email"`
	AccessToken string           `json:"accessToken"`
	RequestedAt time.Time        `json:"requestedAt"`
}

// ObjectKey is the storage key the archive of this job is uploaded to.
func (j ExportJobMessage) ObjectKey() string {
	return "exports/" + j.JobID + ".zip"
}
