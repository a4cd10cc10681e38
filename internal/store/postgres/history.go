package postgres

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	dberr "github.com/webitel/rocrate-exporter/internal/errors"
	"github.com/webitel/rocrate-exporter/internal/model"
	"github.com/webitel/rocrate-exporter/internal/store"
)

const historyTable = "rocrate_exporter.export_history"

type History struct {
	storage *Store
}

func NewHistoryStore(s *Store) (store.HistoryStore, error) {
	if s == nil {
		return nil, dberr.New("store is nil", dberr.WithID("store.history.new"))
	}
	return &History{storage: s}, nil
}

func (m *History) GetExportHistory(ctx context.Context, email string, page, size int) (*model.HistoryPage, error) {
	db, err := m.storage.Database()
	if err != nil {
		return nil, dbInternal("get_export_history", err)
	}

	// Page & size
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	offset := (page - 1) * size
	limit := size + 1 // fetch one extra to check has_next

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query := psql.
		Select(
			"id",
			"job_id",
			"email",
			"file_count",
			"total_size",
			"failed_count",
			"download_url",
			"error_message",
			"status",
			"created_at",
			"updated_at",
		).
		From(historyTable).
		Where(sq.Eq{"email": email}).
		OrderBy("created_at DESC").
		Offset(uint64(offset)).
		Limit(uint64(limit))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, dbInternal("get_export_history", err)
	}

	rows, err := db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, dbInternal("get_export_history", err)
	}
	defer rows.Close()

	records := []*model.ExportHistory{}
	for rows.Next() {
		var record model.ExportHistory
		err := rows.Scan(
			&record.ID,
			&record.JobID,
			&record.Email,
			&record.FileCount,
			&record.TotalSize,
			&record.FailedCount,
			&record.DownloadURL,
			&record.ErrorMessage,
			&record.Status,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, dbInternal("get_export_history", err)
		}
		records = append(records, &record)
	}

	if err = rows.Err(); err != nil {
		return nil, dbInternal("get_export_history", err)
	}

	// Check has_next
	hasNext := false
	if len(records) > size {
		hasNext = true
		records = records[:len(records)-1] // drop the extra record
	}

	return &model.HistoryPage{
		Page: page,
		Next: hasNext,
		Data: records,
	}, nil
}

func (m *History) InsertExportHistory(ctx context.Context, input *model.NewExportHistory) (int64, error) {
	db, err := m.storage.Database()
	if err != nil {
		return 0, dbInternal("insert_export_history", err)
	}

	query := `
		INSERT INTO ` + historyTable + `
			(job_id, email, file_count, total_size, failed_count, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $6)
		RETURNING id
	`

	var id int64
	err = db.QueryRow(
		ctx,
		query,
		input.JobID,
		input.Email,
		input.FileCount,
		input.TotalSize,
		input.Status,
		input.CreatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return 0, dberr.New("export already recorded",
				dberr.WithID("store.history.insert.unique_violation"),
				dberr.WithCode(409),
				dberr.WithCause(err),
			)
		}
		return 0, dbInternal("insert_export_history", err)
	}

	return id, nil
}

func (m *History) UpdateExportStatus(ctx context.Context, input *model.UpdateExportStatus) error {
	db, err := m.storage.Database()
	if err != nil {
		return dbInternal("update_export_status", err)
	}

	query, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Update(historyTable).
		Set("status", input.Status).
		Set("failed_count", input.FailedCount).
		Set("download_url", input.DownloadURL).
		Set("error_message", input.ErrorMessage).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"job_id": input.JobID}).
		ToSql()
	if err != nil {
		return dbInternal("update_export_status", err)
	}

	if _, err := db.Exec(ctx, query, args...); err != nil {
		return dbInternal("update_export_status", err)
	}
	return nil
}

func dbInternal(op string, err error) error {
	return dberr.Internal("database error", dberr.WithID("store."+op), dberr.WithCause(err))
}
