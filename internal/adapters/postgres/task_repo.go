package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aldalur/plantmap/internal/core/domain"
)

// TaskRepo implements ports.TaskRepository with pgx.
type TaskRepo struct {
	db *DB
}

// NewTaskRepo creates a new TaskRepo.
func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// ListByTree returns a tree's maintenance tasks, newest first.
func (r *TaskRepo) ListByTree(ctx context.Context, treeID int64) ([]domain.Task, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, tree_id, title, status, due_at, completed_at, COALESCE(assigned_to, ''), created_at
		FROM tasks WHERE tree_id = $1
		ORDER BY created_at DESC
	`, treeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.TreeID, &t.Title, &t.Status,
			&t.DueAt, &t.CompletedAt, &t.AssignedTo, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// TimelineByTree returns a tree's visit history, newest first.
func (r *TaskRepo) TimelineByTree(ctx context.Context, treeID int64) ([]domain.TimelineEvent, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, tree_id, event_time, kind, COALESCE(note, ''), COALESCE(photo_url, ''), COALESCE(author, '')
		FROM timeline_events WHERE tree_id = $1
		ORDER BY event_time DESC
	`, treeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.TimelineEvent
	for rows.Next() {
		var e domain.TimelineEvent
		if err := rows.Scan(&e.ID, &e.TreeID, &e.Time, &e.Kind,
			&e.Note, &e.PhotoURL, &e.Author); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Create inserts a task and returns its id.
func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO tasks (tree_id, title, status, due_at, assigned_to)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, t.TreeID, t.Title, t.Status, t.DueAt, t.AssignedTo).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

// SetStatus updates a task's status, stamping completion when it closes.
func (r *TaskRepo) SetStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE tasks
		SET status = $2,
		    completed_at = CASE WHEN $2 = 'done' THEN now() ELSE completed_at END
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
