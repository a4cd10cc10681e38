package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/webitel/rocrate-exporter/internal/errors"
	"github.com/webitel/rocrate-exporter/internal/model"
	"github.com/webitel/rocrate-exporter/internal/store"
	"github.com/webitel/rocrate-exporter/internal/tracker"
)

const (
	defaultHistorySize = 20
	maxHistorySize     = 100
)

// Dispatcher hands a job to the background workers without waiting for it.
// It reports false when the job could not be queued.
type Dispatcher interface {
	Dispatch(job model.ExportJobMessage) bool
}

type ExportRequest struct {
	Files []model.ExportFileInfo `json:"files" validate:"required,min=1,dive"`
	Email string                 `json:"email" validate:"required,email"`
}

type SubmitResult struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

type ExportService interface {
	Submit(ctx context.Context, token string, req *ExportRequest) (*SubmitResult, error)
	Status(ctx context.Context, jobID string) (*model.JobStatus, error)
	History(ctx context.Context, email string, page, size int) (*model.HistoryPage, error)
}

type ExportServiceImpl struct {
	tracker    *tracker.Tracker
	dispatcher Dispatcher
	store      store.Store
	validate   *validator.Validate
	log        *slog.Logger
	now        func() time.Time
}

func NewExportService(tr *tracker.Tracker, d Dispatcher, s store.Store, log *slog.Logger) (*ExportServiceImpl, error) {
	if tr == nil || d == nil {
		return nil, errors.Internal("tracker or dispatcher is nil in ExportService")
	}
	if s == nil {
		s = store.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &ExportServiceImpl{
		tracker:    tr,
		dispatcher: d,
		store:      s,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *ExportServiceImpl) Submit(ctx context.Context, token string, req *ExportRequest) (*SubmitResult, error) {
	if token == "" {
		return nil, errors.New("Authentication required",
			errors.WithID("service.export.submit.unauthenticated"),
			errors.WithCode(http.StatusUnauthorized),
		)
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	job := model.ExportJobMessage{
		JobID:       uuid.NewString(),
		Files:       req.Files,
		Email:       req.Email,
		AccessToken: token,
		RequestedAt: s.now(),
	}
	totalSize := model.TotalDeclaredSize(job.Files)

	if err := s.tracker.Init(ctx, job.JobID, len(job.Files), totalSize); err != nil {
		return nil, errors.Internal("failed to register job",
			errors.WithID("service.export.submit.tracker_init"),
			errors.WithCause(err),
		)
	}

	if _, err := s.store.History().InsertExportHistory(ctx, &model.NewExportHistory{
		JobID:     job.JobID,
		Email:     job.Email,
		FileCount: len(job.Files),
		TotalSize: totalSize,
		Status:    model.ExportStatusPending,
		CreatedAt: job.RequestedAt,
	}); err != nil {
		s.log.WarnContext(ctx, "rocrate_exporter.service.history_insert_failed",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
	}

	if !s.dispatcher.Dispatch(job) {
		msg := "export queue is full"
		s.tracker.Fail(ctx, job.JobID, msg)
		_ = s.store.History().UpdateExportStatus(ctx, &model.UpdateExportStatus{
			JobID:        job.JobID,
			Status:       model.ExportStatusFailed,
			ErrorMessage: &msg,
		})
		return nil, errors.New("export queue is full, try again later",
			errors.WithID("service.export.submit.queue_full"),
			errors.WithCode(http.StatusServiceUnavailable),
		)
	}

	s.log.InfoContext(ctx, "rocrate_exporter.service.job_submitted",
		slog.String("job_id", job.JobID),
		slog.Int("files", len(job.Files)),
		slog.Int64("total_size", totalSize),
	)

	return &SubmitResult{
		Success: true,
		JobID:   job.JobID,
		Message: fmt.Sprintf("Export request submitted. You will receive an email at %s when your download is ready.", job.Email),
	}, nil
}

func (s *ExportServiceImpl) Status(ctx context.Context, jobID string) (*model.JobStatus, error) {
	st, err := s.tracker.Query(ctx, jobID)
	if errors.Is(err, tracker.ErrJobNotFound) {
		return nil, errors.New("job not found",
			errors.WithID("service.export.status.not_found"),
			errors.WithCode(http.StatusNotFound),
		)
	}
	if err != nil {
		return nil, errors.Internal("failed to read job status",
			errors.WithID("service.export.status.query"),
			errors.WithCause(err),
		)
	}
	return st, nil
}

func (s *ExportServiceImpl) History(ctx context.Context, email string, page, size int) (*model.HistoryPage, error) {
	if !store.Enabled(s.store) {
		return nil, errors.New("history disabled",
			errors.WithID("service.export.history.disabled"),
			errors.WithCode(http.StatusNotFound),
		)
	}
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, errors.NewValidationError("email: must be a valid address")
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultHistorySize
	}
	if size > maxHistorySize {
		size = maxHistorySize
	}
	return s.store.History().GetExportHistory(ctx, email, page, size)
}

func (s *ExportServiceImpl) validateRequest(req *ExportRequest) error {
	if req == nil {
		return errors.NewValidationError("body: required")
	}
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.NewValidationError(err.Error())
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, describe(fe))
	}
	return errors.NewValidationError(fields...)
}

func describe(fe validator.FieldError) string {
	// ExportRequest.Files[0].MemberOf.ID -> files[0].memberOf.id
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		parts[i] = lowerFirst(p)
	}
	ns = strings.Join(parts, ".")

	switch {
	case fe.Tag() == "min" && fe.Field() == "Files":
		return "files: at least one file must be selected"
	case fe.Tag() == "email":
		return ns + ": valid email required"
	case fe.Tag() == "required":
		return ns + ": required"
	default:
		return fmt.Sprintf("%s: failed %s", ns, fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	if s == "ID" {
		return "id"
	}
	return strings.ToLower(s[:1]) + s[1:]
}
