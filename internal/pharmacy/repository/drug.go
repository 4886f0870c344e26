package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacore/pharmacy-backend/pkg/database"
	"github.com/pharmacore/pharmacy-backend/pkg/errors"
)

// Drug represents a sellable drug identity in the catalog
type Drug struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	GenericName  *string   `db:"generic_name" json:"generic_name,omitempty"`
	Form         string    `db:"form" json:"form"`
	Strength     *string   `db:"strength" json:"strength,omitempty"`
	ReorderLevel int       `db:"reorder_level" json:"reorder_level"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DrugRepository handles drug catalog persistence
type DrugRepository struct {
	db *database.DB
}

// NewDrugRepository creates a new drug repository
func NewDrugRepository(db *database.DB) *DrugRepository {
	return &DrugRepository{db: db}
}

// Create creates a new drug
func (r *DrugRepository) Create(ctx context.Context, drug *Drug) error {
	if drug.ID == "" {
		drug.ID = uuid.New().String()
	}

	query := `
		INSERT INTO drugs (
			id, code, name, generic_name, form, strength, reorder_level, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		drug.ID, drug.Code, drug.Name, drug.GenericName, drug.Form,
		drug.Strength, drug.ReorderLevel, drug.IsActive,
	).Scan(&drug.CreatedAt, &drug.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a drug by ID
func (r *DrugRepository) GetByID(ctx context.Context, id string) (*Drug, error) {
	var drug Drug
	query := `SELECT * FROM drugs WHERE id = $1`
	if err := r.db.GetContext(ctx, &drug, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("drug")
		}
		return nil, err
	}
	return &drug, nil
}

// Update updates a drug's descriptive fields. Stock is never touched here.
func (r *DrugRepository) Update(ctx context.Context, drug *Drug) error {
	query := `
		UPDATE drugs SET
			name = $2, generic_name = $3, form = $4, strength = $5,
			reorder_level = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		drug.ID, drug.Name, drug.GenericName, drug.Form, drug.Strength,
		drug.ReorderLevel, drug.IsActive,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("drug")
	}

	return nil
}

// Deactivate soft-deletes a drug. Catalog entries are never hard-deleted
// because ledger rows reference them.
func (r *DrugRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE drugs SET is_active = false, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("drug")
	}

	return nil
}

// List lists drugs in stable name order, optionally restricted to active ones
// and filtered by a name/generic-name search term.
func (r *DrugRepository) List(ctx context.Context, activeOnly bool, search string) ([]*Drug, error) {
	var drugs []*Drug

	query := `SELECT * FROM drugs WHERE 1=1`
	args := []interface{}{}

	if activeOnly {
		query += ` AND is_active = true`
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		query += ` AND (name ILIKE $1 OR generic_name ILIKE $1 OR code ILIKE $1)`
	}
	query += ` ORDER BY name, id`

	if err := r.db.SelectContext(ctx, &drugs, query, args...); err != nil {
		return nil, err
	}
	return drugs, nil
}

// GetAllActive gets all active drugs
func (r *DrugRepository) GetAllActive(ctx context.Context) ([]*Drug, error) {
	var drugs []*Drug
	query := `SELECT * FROM drugs WHERE is_active = true ORDER BY name, id`
	if err := r.db.SelectContext(ctx, &drugs, query); err != nil {
		return nil, err
	}
	return drugs, nil
}
