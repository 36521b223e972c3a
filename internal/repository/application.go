// Package repository persists submitted applications to Postgres. It backs
// the submissions endpoint, the boundary the wizard's submit client talks to.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/database"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/submit"
)

// ErrNotFound is returned when no application matches the given id.
var ErrNotFound = errors.New("application not found")

// ApplicationRepository handles application data access.
type ApplicationRepository struct {
	pool *pgxpool.Pool
}

// NewApplicationRepository creates a new application repository.
// Returns error if pool is nil.
func NewApplicationRepository(pool *pgxpool.Pool) (*ApplicationRepository, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	return &ApplicationRepository{pool: pool}, nil
}

// ApplicationRow is a persisted application summary.
type ApplicationRow struct {
	ID            int64
	ApplicationID string
	VisaType      string
	FullName      string
	Email         string
	TotalPrice    string
	Currency      string
	Status        string
	CreatedAt     time.Time
}

// Create stores a submission with its documents and additional services in
// one transaction and returns the stored application id.
func (r *ApplicationRepository) Create(ctx context.Context, p submit.Payload) (string, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query, args, err := database.QB.
		Insert("applications").
		Columns(
			"application_id", "visa_type", "visa_duration_type", "processing_type",
			"transit_people_count", "transit_vehicle_type",
			"full_name", "email", "phone", "address", "phone_of_friend",
			"entry_date", "entry_port", "total_price", "currency", "status",
		).
		Values(
			p.ApplicationID, string(p.VisaType), string(p.VisaDurationType), nullable(string(p.ProcessingType)),
			p.TransitPeopleCount, nullable(string(p.TransitVehicleType)),
			p.FullName, p.Email, p.Phone, p.Address, p.PhoneOfFriend,
			p.EntryDate, p.EntryPort, p.TotalPrice.String(), string(p.Currency), "pending",
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build application insert: %w", err)
	}

	var id int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("insert application: %w", err)
	}

	for role, doc := range p.Documents {
		var extracted []byte
		if doc.ExtractedInfo != nil {
			extracted, err = json.Marshal(doc.ExtractedInfo)
			if err != nil {
				return "", fmt.Errorf("marshal extracted info for %s: %w", role, err)
			}
		}
		query, args, err := database.QB.
			Insert("application_documents").
			Columns("application_id", "role", "file_name", "file_size", "file_type", "file_data", "extracted_info").
			Values(id, role, doc.FileName, doc.FileSize, doc.FileType, doc.FileData, extracted).
			ToSql()
		if err != nil {
			return "", fmt.Errorf("build document insert: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return "", fmt.Errorf("insert document %s: %w", role, err)
		}
	}

	for _, serviceID := range p.AdditionalServiceIDs {
		query, args, err := database.QB.
			Insert("application_services").
			Columns("application_id", "service_id").
			Values(id, serviceID).
			ToSql()
		if err != nil {
			return "", fmt.Errorf("build service insert: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return "", fmt.Errorf("insert service %s: %w", serviceID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return p.ApplicationID, nil
}

// Get returns a stored application summary by its public application id.
func (r *ApplicationRepository) Get(ctx context.Context, applicationID string) (*ApplicationRow, error) {
	query, args, err := database.QB.
		Select("id", "application_id", "visa_type", "full_name", "email", "total_price", "currency", "status", "created_at").
		From("applications").
		Where("application_id = ?", applicationID).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build application query: %w", err)
	}

	var row ApplicationRow
	err = r.pool.QueryRow(ctx, query, args...).Scan(
		&row.ID, &row.ApplicationID, &row.VisaType, &row.FullName,
		&row.Email, &row.TotalPrice, &row.Currency, &row.Status, &row.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query application: %w", err)
	}
	return &row, nil
}

// Exists reports whether an application id has already been stored. The
// submissions endpoint uses it to keep client retries idempotent.
func (r *ApplicationRepository) Exists(ctx context.Context, applicationID string) (bool, error) {
	query, args, err := database.QB.
		Select("1").
		From("applications").
		Where("application_id = ?", applicationID).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}
	var one int
	err = r.pool.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query application existence: %w", err)
	}
	return true, nil
}

// nullable converts an empty string to a NULL-able value.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
