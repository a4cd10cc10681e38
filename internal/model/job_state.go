package model

import "time"

type JobPhase string

const (
	PhaseGrouping    JobPhase = "grouping"
	PhaseDownloading JobPhase = "downloading"
	PhaseZipping     JobPhase = "zipping"
	PhaseUploading   JobPhase = "uploading"
	PhaseEmailing    JobPhase = "emailing"
	PhaseComplete    JobPhase = "complete"
	PhaseFailed      JobPhase = "failed"
)

// Terminal reports whether no further transitions are accepted.
func (p JobPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

type FailedFile struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type DiskStats struct {
	WorkDirSizeMB  int64 `json:"workDirSizeMB"`
	TmpFreeSpaceMB int64 `json:"tmpFreeSpaceMB"`
}

type MemoryStats struct {
	HeapUsedMB  int64 `json:"heapUsedMB"`
	HeapTotalMB int64 `json:"heapTotalMB"`
	RssMB       int64 `json:"rssMB"`
}

// ZipProgress counts archive bytes, kept apart from declared file sizes.
type ZipProgress struct {
	BytesWritten   int64 `json:"bytesWritten"`
	BytesProcessed int64 `json:"bytesProcessed"`
}

type UploadProgress struct {
	Loaded int64 `json:"loaded"`
	Total  int64 `json:"total"`
}

// JobState is the tracked state of one export job.
type JobState struct {
	JobID           string         `json:"jobId"`
	Phase           JobPhase       `json:"phase"`
	TotalFiles      int            `json:"totalFiles"`
	DownloadedFiles int            `json:"downloadedFiles"`
	DownloadedSize  int64          `json:"downloadedSize"`
	FailedFiles     []FailedFile   `json:"failedFiles"`
	TotalSize       int64          `json:"totalSize"`
	Zip             ZipProgress    `json:"zip"`
	Upload          UploadProgress `json:"upload"`
	DownloadURL     string         `json:"downloadUrl,omitempty"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	StartedAt       time.Time      `json:"startedAt"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
	Disk            DiskStats      `json:"disk"`
}

// Clone returns a deep copy safe to hand to readers.
func (s *JobState) Clone() *JobState {
	if s == nil {
		return nil
	}
	c := *s
	c.FailedFiles = make([]FailedFile, len(s.FailedFiles))
	copy(c.FailedFiles, s.FailedFiles)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// JobStatus is what the status query returns: the stored state plus a live
// memory snapshot taken at read time.
type JobStatus struct {
	*JobState
	Memory MemoryStats `json:"memory"`
}
