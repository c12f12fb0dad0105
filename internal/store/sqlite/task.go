package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/glasskit/glassbox/internal/domain"
	"github.com/glasskit/glassbox/internal/track"
)

// TaskInput carries the user-supplied task fields for create and update.
type TaskInput struct {
	Title       string
	Description string
	Status      domain.TaskStatus
	Priority    domain.TaskPriority
	OwnerID     int64
	AssigneeID  *int64
}

// TaskRepo is the model layer for tasks.
type TaskRepo struct {
	db *sql.DB
}

func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// Validate checks field values and that referenced users exist.
func (r *TaskRepo) Validate(ctx context.Context, in TaskInput) error {
	named := map[string]any{"title": in.Title, "status": in.Status, "priority": in.Priority, "owner_id": in.OwnerID}
	return track.DoVoid(ctx, track.Invocation{Name: "Task.validate", NamedArgs: named}, func(ctx context.Context) error {
		if err := domain.ValidateTask(in.Title, in.Status, in.Priority); err != nil {
			return err
		}

		if err := r.userExists(ctx, in.OwnerID); err != nil {
			return fmt.Errorf("%w: owner user %d does not exist", domain.ErrValidation, in.OwnerID)
		}
		if in.AssigneeID != nil {
			if err := r.userExists(ctx, *in.AssigneeID); err != nil {
				return fmt.Errorf("%w: assignee user %d does not exist", domain.ErrValidation, *in.AssigneeID)
			}
		}
		return nil
	})
}

func (r *TaskRepo) userExists(ctx context.Context, id int64) error {
	const q = `SELECT id FROM users WHERE id = ?`
	var found int64
	n, err := queryRows(ctx, r.db, q, []any{id}, func(rows *sql.Rows) error {
		return rows.Scan(&found)
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TaskRepo) Create(ctx context.Context, in TaskInput) (*domain.Task, error) {
	return track.Do(ctx, track.Invocation{Name: "Task.create", Args: []any{in.Title, in.Status, in.Priority, in.OwnerID}}, func(ctx context.Context) (*domain.Task, error) {
		if err := r.Validate(ctx, in); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		ts := now.Format(time.RFC3339Nano)
		id, err := execStmt(ctx, r.db,
			`INSERT INTO tasks (title, description, status, priority, owner_id, assignee_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.Title, in.Description, string(in.Status), string(in.Priority), in.OwnerID, in.AssigneeID, ts, ts,
		)
		if err != nil {
			return nil, fmt.Errorf("taskRepo.Create: %w", err)
		}

		return r.GetByID(ctx, id, false)
	})
}

func (r *TaskRepo) GetByID(ctx context.Context, id int64, relations bool) (*domain.Task, error) {
	return track.Do(ctx, track.Invocation{Name: "Task.get_by_id", Args: []any{id}, NamedArgs: map[string]any{"include_relations": relations}}, func(ctx context.Context) (*domain.Task, error) {
		var (
			t   domain.Task
			n   int64
			err error
		)

		if relations {
			const q = `SELECT t.id, t.title, t.description, t.status, t.priority, t.owner_id, t.assignee_id,
			                  t.created_at, t.updated_at, o.name, COALESCE(a.name, '')
			           FROM tasks t
			           JOIN users o ON o.id = t.owner_id
			           LEFT JOIN users a ON a.id = t.assignee_id
			           WHERE t.id = ?`
			n, err = queryRows(ctx, r.db, q, []any{id}, scanTaskWithNames(&t))
		} else {
			const q = `SELECT id, title, description, status, priority, owner_id, assignee_id, created_at, updated_at
			           FROM tasks WHERE id = ?`
			n, err = queryRows(ctx, r.db, q, []any{id}, scanTask(&t))
		}
		if err != nil {
			return nil, fmt.Errorf("taskRepo.GetByID: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("taskRepo.GetByID: %w", domain.ErrNotFound)
		}
		return &t, nil
	})
}

// GetAll lists tasks newest-first. With relations, owner and assignee names
// are fetched in the same statement via joins.
func (r *TaskRepo) GetAll(ctx context.Context, relations bool) ([]*domain.Task, error) {
	return track.Do(ctx, track.Invocation{Name: "Task.get_all", NamedArgs: map[string]any{"include_relations": relations}}, func(ctx context.Context) ([]*domain.Task, error) {
		tasks := []*domain.Task{}

		if relations {
			const q = `SELECT t.id, t.title, t.description, t.status, t.priority, t.owner_id, t.assignee_id,
			                  t.created_at, t.updated_at, o.name, COALESCE(a.name, '')
			           FROM tasks t
			           JOIN users o ON o.id = t.owner_id
			           LEFT JOIN users a ON a.id = t.assignee_id
			           ORDER BY t.created_at DESC, t.id DESC`
			_, err := queryRows(ctx, r.db, q, nil, func(rows *sql.Rows) error {
				var t domain.Task
				if err := scanTaskWithNames(&t)(rows); err != nil {
					return err
				}
				tasks = append(tasks, &t)
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("taskRepo.GetAll: %w", err)
			}
			return tasks, nil
		}

		const q = `SELECT id, title, description, status, priority, owner_id, assignee_id, created_at, updated_at
		           FROM tasks ORDER BY created_at DESC, id DESC`
		_, err := queryRows(ctx, r.db, q, nil, func(rows *sql.Rows) error {
			var t domain.Task
			if err := scanTask(&t)(rows); err != nil {
				return err
			}
			tasks = append(tasks, &t)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("taskRepo.GetAll: %w", err)
		}
		return tasks, nil
	})
}

// GetAllNaive lists tasks and then looks each owner up one query at a time.
// This is the classic N+1 shape, kept on purpose: it is what the query log's
// duplicate detector exists to expose.
func (r *TaskRepo) GetAllNaive(ctx context.Context) ([]*domain.Task, error) {
	return track.Do(ctx, track.Invocation{Name: "Task.get_all_naive"}, func(ctx context.Context) ([]*domain.Task, error) {
		tasks, err := r.GetAll(ctx, false)
		if err != nil {
			return nil, err
		}

		const q = `SELECT name FROM users WHERE id = ?`
		for _, t := range tasks {
			_, err := queryRows(ctx, r.db, q, []any{t.OwnerID}, func(rows *sql.Rows) error {
				return rows.Scan(&t.OwnerName)
			})
			if err != nil {
				return nil, fmt.Errorf("taskRepo.GetAllNaive: %w", err)
			}
		}
		return tasks, nil
	})
}

func (r *TaskRepo) Update(ctx context.Context, id int64, in TaskInput) (*domain.Task, error) {
	return track.Do(ctx, track.Invocation{Name: "Task.update", Args: []any{id, in.Title, in.Status, in.Priority}}, func(ctx context.Context) (*domain.Task, error) {
		if err := r.Validate(ctx, in); err != nil {
			return nil, err
		}

		affected, err := execStmt(ctx, r.db,
			`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, owner_id = ?, assignee_id = ?, updated_at = ?
			 WHERE id = ?`,
			in.Title, in.Description, string(in.Status), string(in.Priority), in.OwnerID, in.AssigneeID,
			time.Now().UTC().Format(time.RFC3339Nano), id,
		)
		if err != nil {
			return nil, fmt.Errorf("taskRepo.Update: %w", err)
		}
		if affected == 0 {
			return nil, fmt.Errorf("taskRepo.Update: %w", domain.ErrNotFound)
		}

		return r.GetByID(ctx, id, false)
	})
}

func (r *TaskRepo) Delete(ctx context.Context, id int64) error {
	return track.DoVoid(ctx, track.Invocation{Name: "Task.delete", Args: []any{id}}, func(ctx context.Context) error {
		affected, err := execStmt(ctx, r.db, `DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("taskRepo.Delete: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("taskRepo.Delete: %w", domain.ErrNotFound)
		}
		return nil
	})
}

func scanTask(t *domain.Task) func(*sql.Rows) error {
	return func(rows *sql.Rows) error {
		var createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority,
			&t.OwnerID, &t.AssigneeID, &createdAt, &updatedAt); err != nil {
			return err
		}
		return parseTaskTimes(t, createdAt, updatedAt)
	}
}

func scanTaskWithNames(t *domain.Task) func(*sql.Rows) error {
	return func(rows *sql.Rows) error {
		var createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority,
			&t.OwnerID, &t.AssigneeID, &createdAt, &updatedAt, &t.OwnerName, &t.AssigneeName); err != nil {
			return err
		}
		return parseTaskTimes(t, createdAt, updatedAt)
	}
}

func parseTaskTimes(t *domain.Task, createdAt, updatedAt string) error {
	c, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}
	u, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return fmt.Errorf("parsing updated_at: %w", err)
	}
	t.CreatedAt, t.UpdatedAt = c, u
	return nil
}
