package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lmhq-94/parkit-sub000/internal/ids"
)

const pgErrUniqueViolation = "23505"

var (
	_ UserStore         = (*PGStore)(nil)
	_ RefreshTokenStore = (*PGStore)(nil)
	_ ResourceStore     = (*PGStore)(nil)
)

// ownerColumns whitelists the tables consulted for ownership checks. Lookups
// never interpolate caller input into identifiers.
var ownerColumns = map[string]struct {
	table  string
	column string
}{
	ResourceParkings:     {table: "parkings", column: "owner_id"},
	ResourceReservations: {table: "reservations", column: "user_id"},
	ResourcePayments:     {table: "payments", column: "user_id"},
}

// PGStore implements the persistence interfaces on PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, email, password_hash, role, organization_id, active, created_at, updated_at)
		values ($1, $2, $3, $4, nullif($5, ''), $6, $7, $8)
	`, u.ID, strings.ToLower(u.Email), u.PasswordHash, string(u.Role), u.OrganizationID, u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserAlreadyExists
		}
		return err
	}
	return nil
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*User, error) {
	return s.findUser(ctx, `where id = $1`, id)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findUser(ctx, `where email = $1`, strings.ToLower(email))
}

func (s *PGStore) findUser(ctx context.Context, where string, arg any) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, email, password_hash, role, coalesce(organization_id, ''), active, last_login_at, created_at, updated_at
		from users `+where, arg)
	var (
		u         User
		role      string
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.OrganizationID, &u.Active, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func (s *PGStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash = $2, updated_at = now() where id = $1`,
		userID, passwordHash)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *PGStore) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set last_login_at = $2 where id = $1`,
		userID, at)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *PGStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		insert into revoked_tokens (jti, expires_at) values ($1, $2)
		on conflict (jti) do nothing
	`, jti, expiresAt)
	return err
}

func (s *PGStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from revoked_tokens where jti = $1)`, jti).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PGStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from revoked_tokens where expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PGStore) OwnerID(ctx context.Context, resourceType, resourceID string) (string, error) {
	target, ok := ownerColumns[resourceType]
	if !ok {
		return "", fmt.Errorf("auth: no ownership mapping for resource %q", resourceType)
	}
	var owner string
	query := fmt.Sprintf(`select %s from %s where id = $1`, target.column, target.table)
	if err := s.db.QueryRowContext(ctx, query, resourceID).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return owner, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
