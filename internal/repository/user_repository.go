package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/mentor-queue/internal/domain"
)

// UserRepository defines persistence access for local user records.
type UserRepository interface {
	Upsert(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	UpdateProfile(ctx context.Context, id string, profile domain.UserProfile) (*domain.User, error)
	UpdateSnapshot(ctx context.Context, id, name, email string) error
	SetDiscord(ctx context.Context, id, handle string) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `
        id, role, name, email, location, zoomlink, discord, phone, preferred,
        resolved_tickets, ratings::float8[], reviews, claimed_ticket_id, created_at, updated_at`

// Upsert creates the user or refreshes the role and name/email snapshot of an
// existing row. Empty names and emails never overwrite stored values.
func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	query := `
        INSERT INTO users (id, role, name, email)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET
            role = EXCLUDED.role,
            name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
            email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
            updated_at = NOW()
        RETURNING ` + userColumns

	saved, err := scanUser(r.pool.QueryRow(ctx, query, user.ID, string(user.Role), user.Name, user.Email))
	if err != nil {
		return err
	}
	*user = *saved
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) UpdateProfile(ctx context.Context, id string, profile domain.UserProfile) (*domain.User, error) {
	query := `
        UPDATE users SET role=$2, location=$3, zoomlink=$4, discord=$5, phone=$6, preferred=$7, updated_at=NOW()
        WHERE id=$1
        RETURNING ` + userColumns

	var preferred *string
	if profile.Preferred != nil {
		p := string(*profile.Preferred)
		preferred = &p
	}
	user, err := scanUser(r.pool.QueryRow(ctx, query,
		id,
		string(profile.Role),
		profile.Location,
		profile.ZoomLink,
		profile.Discord,
		profile.Phone,
		preferred,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepository) UpdateSnapshot(ctx context.Context, id, name, email string) error {
	const query = `UPDATE users SET name=$2, email=$3, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, name, email)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) SetDiscord(ctx context.Context, id, handle string) error {
	const query = `UPDATE users SET discord=$2, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, handle)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user      domain.User
		role      string
		preferred *string
	)
	if err := row.Scan(
		&user.ID,
		&role,
		&user.Name,
		&user.Email,
		&user.Location,
		&user.ZoomLink,
		&user.Discord,
		&user.Phone,
		&preferred,
		&user.ResolvedTickets,
		&user.Ratings,
		&user.Reviews,
		&user.ClaimedTicketID,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	user.Preferred = preferredPtr(preferred)
	return &user, nil
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	result := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}
