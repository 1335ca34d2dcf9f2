package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"feveroracle-chatbot/pkg"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("db: not found")

// Repository wraps database operations for the report store.  A single
// Postgres database backs it; the caller owns the connection lifecycle.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a Repository from an existing sql.DB.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// InsertReport persists a finished assessment and returns the stored row.
// The suspected fever type is linked to the fever_types reference table
// when a matching entry exists; unknown labels (e.g. "No Fever") are kept
// as plain text with no reference.
func (r *Repository) InsertReport(ctx context.Context, report *pkg.Report) (*pkg.Report, error) {
	answers, err := json.Marshal(report.Answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}

	var feverTypeID sql.NullString
	err = r.DB.QueryRowContext(ctx,
		`SELECT id FROM fever_types WHERE name = $1`,
		report.SuspectedFeverType,
	).Scan(&feverTypeID.String)
	switch {
	case err == nil:
		feverTypeID.Valid = true
	case errors.Is(err, sql.ErrNoRows):
		// not a catalogued fever type; store the label only
	default:
		return nil, fmt.Errorf("lookup fever type: %w", err)
	}

	var userID sql.NullString
	if report.UserID != "" {
		userID = sql.NullString{String: report.UserID, Valid: true}
	}

	stored := *report
	err = r.DB.QueryRowContext(ctx,
		`INSERT INTO symptom_reports
            (user_id, session_id, answers, suspected_fever_type, fever_type_id,
             temperature, recommendation, risk_score, risk_level)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
         RETURNING id, created_at`,
		userID,
		report.SessionID,
		answers,
		report.SuspectedFeverType,
		feverTypeID,
		report.Temperature,
		report.Recommendation,
		report.RiskScore,
		string(report.RiskLevel),
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	return &stored, nil
}

// ListRecentReports returns the newest reports, newest first.
func (r *Repository) ListRecentReports(ctx context.Context, limit int) ([]pkg.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, COALESCE(user_id, ''), session_id, answers,
                suspected_fever_type, temperature, recommendation,
                risk_score, risk_level, created_at
         FROM symptom_reports
         ORDER BY created_at DESC
         LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []pkg.Report
	for rows.Next() {
		var (
			rep     pkg.Report
			answers []byte
			level   string
		)
		if err := rows.Scan(&rep.ID, &rep.UserID, &rep.SessionID, &answers,
			&rep.SuspectedFeverType, &rep.Temperature, &rep.Recommendation,
			&rep.RiskScore, &level, &rep.CreatedAt); err != nil {
			return nil, err
		}
		rep.RiskLevel = pkg.RiskLevel(level)
		if err := json.Unmarshal(answers, &rep.Answers); err != nil {
			return nil, fmt.Errorf("decode answers for report %s: %w", rep.ID, err)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

// GetReport fetches one report by id.
func (r *Repository) GetReport(ctx context.Context, id string) (*pkg.Report, error) {
	var (
		rep     pkg.Report
		answers []byte
		level   string
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, COALESCE(user_id, ''), session_id, answers,
                suspected_fever_type, temperature, recommendation,
                risk_score, risk_level, created_at
         FROM symptom_reports
         WHERE id = $1`, id,
	).Scan(&rep.ID, &rep.UserID, &rep.SessionID, &answers,
		&rep.SuspectedFeverType, &rep.Temperature, &rep.Recommendation,
		&rep.RiskScore, &level, &rep.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rep.RiskLevel = pkg.RiskLevel(level)
	if err := json.Unmarshal(answers, &rep.Answers); err != nil {
		return nil, fmt.Errorf("decode answers for report %s: %w", rep.ID, err)
	}
	return &rep, nil
}
