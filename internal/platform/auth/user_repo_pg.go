package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/malaria/das/internal/platform/db"
)

type userRepoPG struct {
	db db.Querier
}

// NewUserRepo returns a UserRepository backed by the "user" table.
func NewUserRepo(q db.Querier) UserRepository {
	return &userRepoPG{db: q}
}

// Duplicate emails resolve to the lowest id.
const userByEmailSQL = `SELECT id, COALESCE(name, ''), COALESCE(country, ''), COALESCE(institution, ''),
	COALESCE(position, ''), COALESCE(national_id, ''), COALESCE(phone, ''), email,
	COALESCE(password, ''), COALESCE(role, ''), health_center_id
	FROM "user" WHERE email = $1 ORDER BY id LIMIT 1`

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := db.Conn(ctx, r.db).QueryRow(ctx, userByEmailSQL, email).Scan(
		&u.ID, &u.Name, &u.Country, &u.Institution,
		&u.Position, &u.NationalID, &u.Phone, &u.Email,
		&u.Password, &u.Role, &u.HealthCenterID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return &u, nil
}
