package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/conclave-mcp/orchestrator/internal/domain"
)

// TaskStore is the Postgres-backed storage.TaskStore implementation.
type TaskStore struct {
	db sqlx.ExtContext
}

// NewTaskStore wraps db for task persistence.
func NewTaskStore(db sqlx.ExtContext) *TaskStore {
	return &TaskStore{db: db}
}

type taskRow struct {
	TaskID         string         `db:"task_id"`
	Title          string         `db:"title"`
	Description    string         `db:"description"`
	Status         string         `db:"status"`
	Priority       string         `db:"priority"`
	CreatedBy      string         `db:"created_by"`
	AssignedTo     sql.NullString `db:"assigned_to"`
	ParentTask     sql.NullString `db:"parent_task"`
	DependsOnTasks pq.StringArray `db:"depends_on_tasks"`
	Tags           pq.StringArray `db:"tags"`
	DisplayOrder   int            `db:"display_order"`
	DueDate        sql.NullTime   `db:"due_date"`
	Metadata       []byte         `db:"metadata"`
	CreatedAt      sql.NullTime   `db:"created_at"`
	UpdatedAt      sql.NullTime   `db:"updated_at"`
}

func (r taskRow) toDomain() (domain.Task, error) {
	t := domain.Task{
		TaskID:         r.TaskID,
		Title:          r.Title,
		Description:    r.Description,
		Status:         domain.TaskStatus(r.Status),
		Priority:       domain.TaskPriority(r.Priority),
		CreatedBy:      r.CreatedBy,
		DependsOnTasks: []string(r.DependsOnTasks),
		Tags:           []string(r.Tags),
		DisplayOrder:   r.DisplayOrder,
		CreatedAt:      r.CreatedAt.Time,
		UpdatedAt:      r.UpdatedAt.Time,
	}
	if r.AssignedTo.Valid {
		t.AssignedTo = &r.AssignedTo.String
	}
	if r.ParentTask.Valid {
		t.ParentTask = &r.ParentTask.String
	}
	if r.DueDate.Valid {
		t.DueDate = &r.DueDate.Time
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &t.Metadata); err != nil {
			return domain.Task{}, fmt.Errorf("postgres: unmarshal task metadata: %w", err)
		}
	}
	return t, nil
}

func metadataJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (s *TaskStore) Create(ctx context.Context, t domain.Task) error {
	meta, err := metadataJSON(t.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal metadata for task %s: %w", t.TaskID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, title, description, status, priority, created_by, assigned_to,
		                    parent_task, depends_on_tasks, tags, display_order, due_date, metadata,
		                    created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, t.TaskID, t.Title, t.Description, string(t.Status), string(t.Priority), t.CreatedBy, t.AssignedTo,
		t.ParentTask, pq.Array(t.DependsOnTasks), pq.Array(t.Tags), t.DisplayOrder, t.DueDate, meta,
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create task %s: %w", t.TaskID, err)
	}
	return nil
}

const selectTaskColumns = `
	task_id, title, description, status, priority, created_by, assigned_to,
	parent_task, depends_on_tasks, tags, display_order, due_date, metadata, created_at, updated_at
`

func (s *TaskStore) Get(ctx context.Context, taskID string) (domain.Task, bool, error) {
	var row taskRow
	err := sqlx.GetContext(ctx, s.db, &row, `SELECT `+selectTaskColumns+` FROM tasks WHERE task_id = $1`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, false, nil
	}
	if err != nil {
		return domain.Task{}, false, fmt.Errorf("postgres: get task %s: %w", taskID, err)
	}
	t, err := row.toDomain()
	return t, true, err
}

func (s *TaskStore) Update(ctx context.Context, t domain.Task) error {
	meta, err := metadataJSON(t.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal metadata for task %s: %w", t.TaskID, err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title=$1, description=$2, status=$3, priority=$4, assigned_to=$5,
		                 parent_task=$6, depends_on_tasks=$7, tags=$8, display_order=$9,
		                 due_date=$10, metadata=$11, updated_at=$12
		WHERE task_id = $13
	`, t.Title, t.Description, string(t.Status), string(t.Priority), t.AssignedTo, t.ParentTask,
		pq.Array(t.DependsOnTasks), pq.Array(t.Tags), t.DisplayOrder, t.DueDate, meta, t.UpdatedAt, t.TaskID)
	if err != nil {
		return fmt.Errorf("postgres: update task %s: %w", t.TaskID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("postgres: task %s not found", t.TaskID)
	}
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("postgres: delete task %s: %w", taskID, err)
	}
	return nil
}

func (s *TaskStore) List(ctx context.Context) ([]domain.Task, error) {
	var rows []taskRow
	err := sqlx.SelectContext(ctx, s.db, &rows, `SELECT `+selectTaskColumns+` FROM tasks ORDER BY display_order, task_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tasks: %w", err)
	}
	return rowsToTasks(rows)
}

func (s *TaskStore) Children(ctx context.Context, parentTaskID string) ([]domain.Task, error) {
	var rows []taskRow
	err := sqlx.SelectContext(ctx, s.db, &rows, `SELECT `+selectTaskColumns+` FROM tasks WHERE parent_task = $1 ORDER BY display_order`, parentTaskID)
	if err != nil {
		return nil, fmt.Errorf("postgres: children of task %s: %w", parentTaskID, err)
	}
	return rowsToTasks(rows)
}

func rowsToTasks(rows []taskRow) ([]domain.Task, error) {
	out := make([]domain.Task, len(rows))
	for i, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}
