package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/glasskit/glassbox/internal/domain"
)

// Seed inserts the demo dataset: three users and five tasks covering every
// status and priority, one of them unassigned. It is a no-op when users
// already exist.
func (s *Store) Seed(ctx context.Context) error {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return fmt.Errorf("sqlite.Seed: %w", err)
	}
	if count > 0 {
		return nil
	}

	alice, err := s.users.Create(ctx, "Alice Anderson", "alice@example.com")
	if err != nil {
		return fmt.Errorf("sqlite.Seed: %w", err)
	}
	bob, err := s.users.Create(ctx, "Bob Builder", "bob@example.com")
	if err != nil {
		return fmt.Errorf("sqlite.Seed: %w", err)
	}
	charlie, err := s.users.Create(ctx, "Charlie Chen", "charlie@example.com")
	if err != nil {
		return fmt.Errorf("sqlite.Seed: %w", err)
	}

	tasks := []TaskInput{
		{
			Title:       "Implement user authentication",
			Description: "Add login and registration functionality with session management.",
			Status:      domain.TaskStatusInProgress,
			Priority:    domain.TaskPriorityHigh,
			OwnerID:     alice.ID,
			AssigneeID:  &bob.ID,
		},
		{
			Title:       "Design homepage layout",
			Description: "Create wireframes and mockups for the new homepage design.",
			Status:      domain.TaskStatusTodo,
			Priority:    domain.TaskPriorityMedium,
			OwnerID:     alice.ID,
			AssigneeID:  &charlie.ID,
		},
		{
			Title:       "Fix navigation menu bug",
			Description: "Navigation menu doesn't close on mobile devices when clicking outside.",
			Status:      domain.TaskStatusDone,
			Priority:    domain.TaskPriorityLow,
			OwnerID:     alice.ID,
			AssigneeID:  &bob.ID,
		},
		{
			Title:       "Set up CI/CD pipeline",
			Description: "Configure automated testing and deployment, including linting.",
			Status:      domain.TaskStatusTodo,
			Priority:    domain.TaskPriorityHigh,
			OwnerID:     alice.ID,
		},
		{
			Title:       "Write API documentation",
			Description: "Document all REST endpoints with request/response examples.",
			Status:      domain.TaskStatusInProgress,
			Priority:    domain.TaskPriorityMedium,
			OwnerID:     alice.ID,
			AssigneeID:  &charlie.ID,
		},
	}

	for _, in := range tasks {
		if _, err := s.tasks.Create(ctx, in); err != nil {
			return fmt.Errorf("sqlite.Seed: %w", err)
		}
	}

	log.Info().Int("users", 3).Int("tasks", len(tasks)).Msg("database seeded")
	return nil
}
