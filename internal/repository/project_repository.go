package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/final-year-project/doubtfire-api/internal/domain"
)

// ProjectRepository reads projects and their tasks.
type ProjectRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Project, error)
	GetTask(ctx context.Context, id int64) (*domain.Task, error)
	FindTaskByDefinition(ctx context.Context, projectID, taskDefinitionID int64) (*domain.Task, error)
}

type projectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository returns a Postgres-backed implementation.
func NewProjectRepository(pool *pgxpool.Pool) ProjectRepository {
	return &projectRepository{pool: pool}
}

func (r *projectRepository) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	const query = `SELECT id, user_id, unit_id, target_grade FROM projects WHERE id=$1`
	var project domain.Project
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.UserID,
		&project.UnitID,
		&project.TargetGrade,
	); err != nil {
		return nil, mapNoRows(err)
	}
	return &project, nil
}

func (r *projectRepository) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	const query = `SELECT id, project_id, task_definition_id FROM tasks WHERE id=$1`
	return r.fetchTask(ctx, query, id)
}

func (r *projectRepository) FindTaskByDefinition(ctx context.Context, projectID, taskDefinitionID int64) (*domain.Task, error) {
	const query = `SELECT id, project_id, task_definition_id FROM tasks WHERE project_id=$1 AND task_definition_id=$2`
	return r.fetchTask(ctx, query, projectID, taskDefinitionID)
}

func (r *projectRepository) fetchTask(ctx context.Context, query string, args ...any) (*domain.Task, error) {
	var task domain.Task
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&task.ID,
		&task.ProjectID,
		&task.TaskDefinitionID,
	); err != nil {
		return nil, mapNoRows(err)
	}
	return &task, nil
}
