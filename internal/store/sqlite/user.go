package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/glasskit/glassbox/internal/domain"
	"github.com/glasskit/glassbox/internal/track"
)

// UserRepo is the model layer for users. Every public operation is invoked
// through the call recorder under its qualified name, so the console's call
// timeline shows the model activity of each request.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Validate checks user input, including email uniqueness. excludeID skips the
// uniqueness check for that user (updates); pass 0 for creates.
func (r *UserRepo) Validate(ctx context.Context, name, email string, excludeID int64) error {
	return track.DoVoid(ctx, track.Invocation{Name: "User.validate", Args: []any{name, email}}, func(ctx context.Context) error {
		if err := domain.ValidateUser(name, email); err != nil {
			return err
		}

		const q = `SELECT id FROM users WHERE email = ? AND id != ?`
		var found int64
		n, err := queryRows(ctx, r.db, q, []any{email, excludeID}, func(rows *sql.Rows) error {
			return rows.Scan(&found)
		})
		if err != nil {
			return fmt.Errorf("userRepo.Validate: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: email %s is already taken", domain.ErrConflict, email)
		}
		return nil
	})
}

func (r *UserRepo) Create(ctx context.Context, name, email string) (*domain.User, error) {
	return track.Do(ctx, track.Invocation{Name: "User.create", Args: []any{name, email}}, func(ctx context.Context) (*domain.User, error) {
		if err := r.Validate(ctx, name, email, 0); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		id, err := execStmt(ctx, r.db,
			`INSERT INTO users (name, email, created_at) VALUES (?, ?, ?)`,
			name, email, now.Format(time.RFC3339Nano),
		)
		if err != nil {
			return nil, fmt.Errorf("userRepo.Create: %w", err)
		}

		return &domain.User{ID: id, Name: name, Email: email, CreatedAt: now}, nil
	})
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return track.Do(ctx, track.Invocation{Name: "User.get_by_id", Args: []any{id}}, func(ctx context.Context) (*domain.User, error) {
		const q = `SELECT id, name, email, created_at FROM users WHERE id = ?`

		var u domain.User
		n, err := queryRows(ctx, r.db, q, []any{id}, scanUser(&u))
		if err != nil {
			return nil, fmt.Errorf("userRepo.GetByID: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("userRepo.GetByID: %w", domain.ErrNotFound)
		}
		return &u, nil
	})
}

func (r *UserRepo) GetAll(ctx context.Context) ([]*domain.User, error) {
	return track.Do(ctx, track.Invocation{Name: "User.get_all"}, func(ctx context.Context) ([]*domain.User, error) {
		const q = `SELECT id, name, email, created_at FROM users ORDER BY created_at DESC, id DESC`

		users := []*domain.User{}
		_, err := queryRows(ctx, r.db, q, nil, func(rows *sql.Rows) error {
			var u domain.User
			if err := scanUser(&u)(rows); err != nil {
				return err
			}
			users = append(users, &u)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("userRepo.GetAll: %w", err)
		}
		return users, nil
	})
}

func (r *UserRepo) Update(ctx context.Context, id int64, name, email string) (*domain.User, error) {
	return track.Do(ctx, track.Invocation{Name: "User.update", Args: []any{id, name, email}}, func(ctx context.Context) (*domain.User, error) {
		if err := r.Validate(ctx, name, email, id); err != nil {
			return nil, err
		}

		affected, err := execStmt(ctx, r.db,
			`UPDATE users SET name = ?, email = ? WHERE id = ?`,
			name, email, id,
		)
		if err != nil {
			return nil, fmt.Errorf("userRepo.Update: %w", err)
		}
		if affected == 0 {
			return nil, fmt.Errorf("userRepo.Update: %w", domain.ErrNotFound)
		}

		return r.GetByID(ctx, id)
	})
}

func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	return track.DoVoid(ctx, track.Invocation{Name: "User.delete", Args: []any{id}}, func(ctx context.Context) error {
		affected, err := execStmt(ctx, r.db, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("userRepo.Delete: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("userRepo.Delete: %w", domain.ErrNotFound)
		}
		return nil
	})
}

func scanUser(u *domain.User) func(*sql.Rows) error {
	return func(rows *sql.Rows) error {
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &createdAt); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return fmt.Errorf("parsing created_at: %w", err)
		}
		u.CreatedAt = t
		return nil
	}
}
