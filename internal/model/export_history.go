// internal/model/export_history.go
package model

import "time"

type ExportStatus string

const (
	ExportStatusPending   ExportStatus = "pending"
	ExportStatusCompleted ExportStatus = "completed"
	ExportStatusFailed    ExportStatus = "failed"
)

type ExportHistory struct {
	ID           int64        `db:"id" json:"id"`
	JobID        string       `db:"job_id" json:"jobId"`
	Email        string       `db:"email" json:"email"`
	FileCount    int          `db:"file_count" json:"fileCount"`
	TotalSize    int64        `db:"total_size" json:"totalSize"`
	FailedCount  int          `db:"failed_count" json:"failedCount"`
	DownloadURL  *string      `db:"download_url" json:"downloadUrl,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"errorMessage,omitempty"`
	Status       ExportStatus `db:"status" json:"status"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

type NewExportHistory struct {
	JobID     string       `db:"job_id"`
	Email     string       `db:"email"`
	FileCount int          `db:"file_count"`
	TotalSize int64        `db:"total_size"`
	Status    ExportStatus `db:"status"`
	CreatedAt time.Time    `db:"created_at"`
}

type UpdateExportStatus struct {
	JobID        string       `db:"job_id"`
	Status       ExportStatus `db:"status"`
	FailedCount  int          `db:"failed_count"`
	DownloadURL  *string      `db:"download_url"`
	ErrorMessage *string      `db:"error_message"`
}

type HistoryPage struct {
	Data []*ExportHistory `json:"data"`
	Page int              `json:"page"`
	Next bool             `json:"next"`
}
