package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/classboard/conduct-api/internal/models"
)

// reportColumns renders date_partition as its canonical YYYY-MM-DD form so
// the value on the read path is byte-identical to the derived write value.
const reportColumns = `id, class, isadd, changescore, note, submitter, reducetype, submittime,
to_char(date_partition, 'YYYY-MM-DD') AS date_partition`

// ReportRepository manages persistence for conduct reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs a new repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// EnsureSchema creates the reports table and its indexes when missing. The
// date/class composite index serves the per-day class queries.
func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id SERIAL PRIMARY KEY,
			class INTEGER NOT NULL,
			isadd BOOLEAN NOT NULL,
			changescore INTEGER NOT NULL,
			note TEXT NOT NULL,
			submitter TEXT NOT NULL,
			reducetype TEXT,
			submittime TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
			date_partition DATE NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS reports_date_class_idx ON reports(date_partition, class)`,
		`CREATE INDEX IF NOT EXISTS reports_submittime_idx ON reports(submittime)`,
		`CREATE INDEX IF NOT EXISTS reports_class_idx ON reports(class)`,
		`CREATE INDEX IF NOT EXISTS reports_date_partition_idx ON reports(date_partition)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Insert stores a new record and fills in the store-assigned id. The caller
// provides submittime and the partition derived from it.
func (r *ReportRepository) Insert(ctx context.Context, record *models.ReportRecord) error {
	query := `INSERT INTO reports (class, isadd, changescore, note, submitter, reducetype, submittime, date_partition)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date)
RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		record.ClassID,
		record.IsAdd,
		record.Score,
		record.Note,
		record.Submitter,
		record.ViolationKind,
		record.SubmittedAt,
		record.DatePartition,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ByDate returns all reports of one partition day, newest first.
func (r *ReportRepository) ByDate(ctx context.Context, date string) ([]models.ReportRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE date_partition = $1::date ORDER BY submittime DESC, id DESC`, reportColumns)
	var records []models.ReportRecord
	if err := r.db.SelectContext(ctx, &records, query, date); err != nil {
		return nil, fmt.Errorf("reports by date: %w", err)
	}
	return records, nil
}

// ByDateAndClass narrows one partition day to a single class, served by the
// composite index.
func (r *ReportRepository) ByDateAndClass(ctx context.Context, date string, classID int) ([]models.ReportRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE date_partition = $1::date AND class = $2 ORDER BY submittime DESC, id DESC`, reportColumns)
	var records []models.ReportRecord
	if err := r.db.SelectContext(ctx, &records, query, date, classID); err != nil {
		return nil, fmt.Errorf("reports by date and class: %w", err)
	}
	return records, nil
}

// ByMonth returns all reports whose submit time falls in the given
// YYYY-MM month.
func (r *ReportRepository) ByMonth(ctx context.Context, yearMonth string) ([]models.ReportRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE date_trunc('month', submittime) = $1::date ORDER BY submittime DESC, id DESC`, reportColumns)
	var records []models.ReportRecord
	if err := r.db.SelectContext(ctx, &records, query, yearMonth+"-01"); err != nil {
		return nil, fmt.Errorf("reports by month: %w", err)
	}
	return records, nil
}

// ByClassAndRange returns one class's reports between two partition days,
// bounds inclusive.
func (r *ReportRepository) ByClassAndRange(ctx context.Context, classID int, start, end string) ([]models.ReportRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE class = $1 AND date_partition BETWEEN $2::date AND $3::date ORDER BY submittime DESC, id DESC`, reportColumns)
	var records []models.ReportRecord
	if err := r.db.SelectContext(ctx, &records, query, classID, start, end); err != nil {
		return nil, fmt.Errorf("reports by class and range: %w", err)
	}
	return records, nil
}
