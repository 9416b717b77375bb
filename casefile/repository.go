package casefile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/metadata"
)

var (
	// ErrCaseNotFound is returned when no case row matches the lookup key.
	ErrCaseNotFound = errors.New("casefile: case not found")
	// ErrCustomerNotFound is returned when the lookup email resolves to no user.
	ErrCustomerNotFound = errors.New("casefile: customer not found")
)

// Repository provides case and stakeholder access over Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const caseColumns = `id::text, customer_id::text, professional_id::text, referrer_id::text,
       status, step_index, progress_percent, final_amount, metadata, created_at, updated_at`

// GetCaseAndStakeholders resolves the most recent case for the customer with
// the given email, together with every stakeholder the pipeline notifies.
func (r *Repository) GetCaseAndStakeholders(ctx context.Context, lookupKey string) (Case, StakeholderContext, error) {
	if lookupKey == "" {
		return Case{}, StakeholderContext{}, fmt.Errorf("casefile: empty lookup key")
	}

	customer, err := r.userByEmail(ctx, lookupKey)
	if err != nil {
		return Case{}, StakeholderContext{}, err
	}

	row := r.pool.QueryRow(ctx, `
SELECT `+caseColumns+`
FROM cases
WHERE customer_id = $1
ORDER BY created_at DESC
LIMIT 1
`, customer.ID)

	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, StakeholderContext{}, fmt.Errorf("%w: customer %s", ErrCaseNotFound, lookupKey)
		}
		return Case{}, StakeholderContext{}, fmt.Errorf("casefile: load case: %w", err)
	}

	stk := StakeholderContext{Customer: customer}

	if c.ProfessionalID != nil {
		pro, err := r.userByID(ctx, *c.ProfessionalID)
		if err != nil {
			return Case{}, StakeholderContext{}, fmt.Errorf("casefile: load professional: %w", err)
		}
		stk.Professional = &pro
	}
	if c.ReferrerID != nil {
		ref, err := r.userByID(ctx, *c.ReferrerID)
		if err != nil {
			return Case{}, StakeholderContext{}, fmt.Errorf("casefile: load referrer: %w", err)
		}
		stk.Referrer = &ref
	}

	admins, err := r.administrators(ctx)
	if err != nil {
		return Case{}, StakeholderContext{}, err
	}
	stk.Administrators = admins

	return c, stk, nil
}

// UpdateCase applies the patch as a single atomic UPDATE and returns the
// full updated record. A nil FinalAmount leaves the stored amount untouched.
func (r *Repository) UpdateCase(ctx context.Context, id string, patch UpdatePatch) (Case, error) {
	if id == "" {
		return Case{}, fmt.Errorf("casefile: update missing case id")
	}
	if !patch.Status.Valid() {
		return Case{}, fmt.Errorf("casefile: update: %w: %q", ErrUnknownStatus, string(patch.Status))
	}

	meta, err := metadata.Encode(patch.Metadata)
	if err != nil {
		return Case{}, fmt.Errorf("casefile: encode metadata: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
UPDATE cases
SET status = $1,
    step_index = $2,
    progress_percent = $3,
    final_amount = COALESCE($4, final_amount),
    metadata = $5::jsonb,
    updated_at = now()
WHERE id = $6
RETURNING `+caseColumns+`
`, string(patch.Status), patch.StepIndex, patch.ProgressPercent, patch.FinalAmount, meta, id)

	updated, err := scanCase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, fmt.Errorf("%w: id %s", ErrCaseNotFound, id)
		}
		return Case{}, fmt.Errorf("casefile: update case: %w", err)
	}
	return updated, nil
}

func (r *Repository) userByEmail(ctx context.Context, email string) (Stakeholder, error) {
	var s Stakeholder
	err := r.pool.QueryRow(ctx, `
SELECT id::text, role, full_name, email FROM users WHERE email = $1
`, email).Scan(&s.ID, &s.Role, &s.FullName, &s.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stakeholder{}, fmt.Errorf("%w: %s", ErrCustomerNotFound, email)
		}
		return Stakeholder{}, fmt.Errorf("casefile: load user by email: %w", err)
	}
	return s, nil
}

func (r *Repository) userByID(ctx context.Context, id string) (Stakeholder, error) {
	var s Stakeholder
	err := r.pool.QueryRow(ctx, `
SELECT id::text, role, full_name, email FROM users WHERE id = $1
`, id).Scan(&s.ID, &s.Role, &s.FullName, &s.Email)
	if err != nil {
		return Stakeholder{}, err
	}
	return s, nil
}

func (r *Repository) administrators(ctx context.Context) ([]Stakeholder, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id::text, role, full_name, email
FROM users
WHERE role = $1
ORDER BY email
`, RoleAdministrator)
	if err != nil {
		return nil, fmt.Errorf("casefile: load administrators: %w", err)
	}
	defer rows.Close()

	var out []Stakeholder
	for rows.Next() {
		var s Stakeholder
		if err := rows.Scan(&s.ID, &s.Role, &s.FullName, &s.Email); err != nil {
			return nil, fmt.Errorf("casefile: scan administrator: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("casefile: iterate administrators: %w", err)
	}
	return out, nil
}

func scanCase(row pgx.Row) (Case, error) {
	var (
		c       Case
		status  string
		rawMeta []byte
	)
	if err := row.Scan(
		&c.ID,
		&c.CustomerID,
		&c.ProfessionalID,
		&c.ReferrerID,
		&status,
		&c.StepIndex,
		&c.ProgressPercent,
		&c.FinalAmount,
		&rawMeta,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return Case{}, err
	}
	c.Status = Status(status)

	meta, err := metadata.Decode(rawMeta)
	if err != nil {
		return Case{}, err
	}
	c.Metadata = meta
	return c, nil
}
