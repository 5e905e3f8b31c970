package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"pos_ledger_backend/internal/models"
)

// AuthRepository is the minimal user store behind the authentication glue.
type AuthRepository interface {
	CreateUser(user *models.User, hashedPassword string) (int64, error)
	FindUserByUsername(username string) (*models.User, error)
	FindUserByID(userID int64) (*models.User, error)
}

type authRepository struct {
	db *sql.DB
}

// NewAuthRepository creates a new Postgres-backed AuthRepository.
func NewAuthRepository(db *sql.DB) AuthRepository {
	return &authRepository{db: db}
}

func (r *authRepository) CreateUser(user *models.User, hashedPassword string) (int64, error) {
	user.CreatedAt = time.Now()
	err := r.db.QueryRow(
		`INSERT INTO users (username, full_name, role, password_hash, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		user.Username, user.FullName, user.Role, hashedPassword, user.IsActive, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, fmt.Errorf("%w: username", ErrDuplicateKey)
		}
		return 0, fmt.Errorf("%w: creating user: %v", ErrDatabaseError, err)
	}
	return user.ID, nil
}

func scanUser(row interface{ Scan(dest ...interface{}) error }, u *models.User) error {
	var fullName sql.NullString
	err := row.Scan(&u.ID, &u.Username, &fullName, &u.Role, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return err
	}
	if fullName.Valid {
		u.FullName = &fullName.String
	}
	return nil
}

func (r *authRepository) FindUserByUsername(username string) (*models.User, error) {
	var u models.User
	err := scanUser(r.db.QueryRow(
		`SELECT id, username, full_name, role, password_hash, is_active, created_at
		 FROM users WHERE username = $1`, username,
	), &u)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: finding user by username: %v", ErrDatabaseError, err)
	}
	return &u, nil
}

func (r *authRepository) FindUserByID(userID int64) (*models.User, error) {
	var u models.User
	err := scanUser(r.db.QueryRow(
		`SELECT id, username, full_name, role, password_hash, is_active, created_at
		 FROM users WHERE id = $1`, userID,
	), &u)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: finding user by id: %v", ErrDatabaseError, err)
	}
	return &u, nil
}
