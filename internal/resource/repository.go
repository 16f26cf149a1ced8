package resource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const resourceColumns = `id, title, description, url, phone, category_id, created_by, created_at, updated_at`

func (r *Repository) List(ctx context.Context, categoryID string) ([]Resource, error) {
	query := `
		SELECT ` + resourceColumns + `
		FROM resources
		ORDER BY created_at DESC
	`
	args := []any{}
	if categoryID != "" {
		query = `
			SELECT ` + resourceColumns + `
			FROM resources
			WHERE category_id = $1
			ORDER BY created_at DESC
		`
		args = append(args, categoryID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	resources := make([]Resource, 0)
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}

	return resources, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Resource, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+resourceColumns+`
		FROM resources
		WHERE id = $1
	`, id)

	return scanResource(row)
}

func (r *Repository) Create(ctx context.Context, input ResourceInput, createdBy string) (Resource, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Resource{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	res := Resource{
		ID:          id.String(),
		Title:       input.Title,
		Description: input.Description,
		URL:         input.URL,
		Phone:       input.Phone,
		CategoryID:  input.CategoryID,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO resources (id, title, description, url, phone, category_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, res.ID, res.Title, res.Description, res.URL, res.Phone, res.CategoryID, res.CreatedBy, now)
	if err != nil {
		return Resource{}, fmt.Errorf("insert resource: %w", err)
	}

	return res, nil
}

func (r *Repository) Update(ctx context.Context, id string, input ResourceInput) (Resource, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE resources
		SET title = $2, description = $3, url = $4, phone = $5, category_id = $6, updated_at = $7
		WHERE id = $1
		RETURNING `+resourceColumns+`
	`, id, input.Title, input.Description, input.URL, input.Phone, input.CategoryID, time.Now().UTC())

	return scanResource(row)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, slug
		FROM categories
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}

func (r *Repository) Save(ctx context.Context, accountID, resourceID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO saved_resources (account_id, resource_id, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, resource_id) DO NOTHING
	`, accountID, resourceID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save resource: %w", err)
	}

	return nil
}

func (r *Repository) Unsave(ctx context.Context, accountID, resourceID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM saved_resources
		WHERE account_id = $1 AND resource_id = $2
	`, accountID, resourceID)
	if err != nil {
		return fmt.Errorf("unsave resource: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *Repository) ListSaved(ctx context.Context, accountID string) ([]SavedResource, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.saved_at, r.id, r.title, r.description, r.url, r.phone, r.category_id, r.created_by, r.created_at, r.updated_at
		FROM saved_resources s
		JOIN resources r ON r.id = s.resource_id
		WHERE s.account_id = $1
		ORDER BY s.saved_at DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query saved resources: %w", err)
	}
	defer rows.Close()

	saved := make([]SavedResource, 0)
	for rows.Next() {
		var s SavedResource
		var phone sql.NullString
		err := rows.Scan(
			&s.SavedAt,
			&s.Resource.ID, &s.Resource.Title, &s.Resource.Description, &s.Resource.URL,
			&phone, &s.Resource.CategoryID, &s.Resource.CreatedBy,
			&s.Resource.CreatedAt, &s.Resource.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan saved resource: %w", err)
		}
		s.Resource.Phone = phone.String
		s.ResourceID = s.Resource.ID
		saved = append(saved, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved resources: %w", err)
	}

	return saved, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (Resource, error) {
	var res Resource
	var phone sql.NullString

	err := row.Scan(&res.ID, &res.Title, &res.Description, &res.URL, &phone, &res.CategoryID, &res.CreatedBy, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Resource{}, err
		}
		return Resource{}, fmt.Errorf("scan resource: %w", err)
	}
	res.Phone = phone.String

	return res, nil
}
