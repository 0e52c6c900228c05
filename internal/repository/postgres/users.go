package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kangalos/auth-service/internal/core/domain"
	"github.com/kangalos/auth-service/internal/core/port"
	"github.com/kangalos/auth-service/internal/repository"
)

const uniqueViolationCode = "23505"

var userColumns = []string{
	"id",
	"email",
	"username",
	"phone",
	"first_name",
	"last_name",
	"password_hash",
	"is_verified",
	"created_at",
	"verified_at",
	"last_password_change",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

type pgExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewUserRepository wires a PostgreSQL-backed user repository. The executor is
// normally a *pgxpool.Pool but tests may substitute a mock.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new user row. A uniqueness violation raised by a racing
// insert surfaces as repository.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	var phoneValue any
	if user.Phone != nil && *user.Phone != "" {
		phoneValue = *user.Phone
	}

	stmt, args, err := r.builder.Insert("auth.users").
		Columns(userColumns...).
		Values(
			user.ID,
			user.Email,
			user.Username,
			phoneValue,
			user.FirstName,
			user.LastName,
			user.PasswordHash,
			user.IsVerified,
			user.CreatedAt,
			user.VerifiedAt,
			user.LastPasswordChange,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("auth.users").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		user       domain.User
		phone      sql.NullString
		verifiedAt sql.NullTime
	)

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&phone,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsVerified,
		&user.CreatedAt,
		&verifiedAt,
		&user.LastPasswordChange,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if phone.Valid {
		value := phone.String
		user.Phone = &value
	}
	if verifiedAt.Valid {
		value := verifiedAt.Time
		user.VerifiedAt = &value
	}

	return &user, nil
}

// FindConflicts reports which identity fields are already taken. The result
// names each conflicting column so registration can surface precise errors.
func (r *UserRepository) FindConflicts(ctx context.Context, email, username, phone string) ([]string, error) {
	or := squirrel.Or{
		squirrel.Eq{"email": email},
		squirrel.Eq{"username": username},
	}
	if phone != "" {
		or = append(or, squirrel.Eq{"phone": phone})
	}

	stmt, args, err := r.builder.
		Select("email", "username", "phone").
		From("auth.users").
		Where(or).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build conflict sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{}, 3)
	for rows.Next() {
		var (
			rowEmail    string
			rowUsername string
			rowPhone    sql.NullString
		)
		if err := rows.Scan(&rowEmail, &rowUsername, &rowPhone); err != nil {
			return nil, fmt.Errorf("scan conflict row: %w", err)
		}

		if rowEmail == email {
			seen["email"] = struct{}{}
		}
		if rowUsername == username {
			seen["username"] = struct{}{}
		}
		if phone != "" && rowPhone.Valid && rowPhone.String == phone {
			seen["phone"] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicts: %w", err)
	}

	if len(seen) == 0 {
		return nil, nil
	}

	// Stable field order for deterministic error messages.
	conflicts := make([]string, 0, len(seen))
	for _, field := range []string{"email", "username", "phone"} {
		if _, ok := seen[field]; ok {
			conflicts = append(conflicts, field)
		}
	}

	return conflicts, nil
}

// MarkVerified flips the verification flag and stamps the time.
func (r *UserRepository) MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	stmt, args, err := r.builder.Update("auth.users").
		Set("is_verified", true).
		Set("verified_at", verifiedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build verify sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the stored credential hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update("auth.users").
		Set("password_hash", passwordHash).
		Set("last_password_change", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)
