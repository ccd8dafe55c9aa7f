package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eatwise/labelscan/internal/core/domain"
)

const reportColumns = `id, user_id, title, image_key, image_url, explanation, record, created_at`

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, report *domain.Report) error {
	recordJSON, err := json.Marshal(report.Record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO reports (`+reportColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`,
		report.ID, report.UserID, report.Title, report.ImageKey, report.ImageURL, report.Explanation,
		recordJSON, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *ReportRepository) ListByUser(ctx context.Context, userID string) ([]domain.Report, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+reportColumns+`
FROM reports
WHERE user_id = $1
ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

func (r *ReportRepository) GetByID(ctx context.Context, userID, reportID string) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+reportColumns+`
FROM reports
WHERE id = $1 AND user_id = $2
`, reportID, userID)

	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrReportNotFound, "get report", fmt.Errorf("id=%s", reportID))
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return &report, nil
}

// Delete removes the report and returns the deleted row so the caller can
// clean up its image.
func (r *ReportRepository) Delete(ctx context.Context, userID, reportID string) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx, `
DELETE FROM reports
WHERE id = $1 AND user_id = $2
RETURNING `+reportColumns+`
`, reportID, userID)

	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrReportNotFound, "delete report", fmt.Errorf("id=%s", reportID))
		}
		return nil, fmt.Errorf("delete report: %w", err)
	}
	return &report, nil
}

func scanReport(row rowScanner) (domain.Report, error) {
	var report domain.Report
	var recordRaw []byte
	err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.Title,
		&report.ImageKey,
		&report.ImageURL,
		&report.Explanation,
		&recordRaw,
		&report.CreatedAt,
	)
	if err != nil {
		return domain.Report{}, err
	}

	if len(recordRaw) > 0 {
		if err := json.Unmarshal(recordRaw, &report.Record); err != nil {
			return domain.Report{}, fmt.Errorf("unmarshal record: %w", err)
		}
	}
	fillRecordDefaults(&report.Record)
	return report, nil
}

// Older rows may lack list fields; responses always carry arrays.
func fillRecordDefaults(record *domain.AnalysisRecord) {
	if record.Ingredients == nil {
		record.Ingredients = []string{}
	}
	if record.Allergens == nil {
		record.Allergens = []string{}
	}
	if record.PossibleAllergens == nil {
		record.PossibleAllergens = []string{}
	}
	if record.AllergensMatched == nil {
		record.AllergensMatched = []string{}
	}
	if record.Nutrition == nil {
		record.Nutrition = map[string]any{}
	}
}
