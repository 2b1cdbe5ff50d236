package repository

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/final-year-project/doubtfire-api/internal/domain"
)

// Seed is the on-disk shape accepted by LoadSeed.
type Seed struct {
	Users []struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Role      string `json:"role"`
	} `json:"users"`
	Projects []struct {
		ID          int64 `json:"id"`
		UserID      int64 `json:"user_id"`
		UnitID      int64 `json:"unit_id"`
		TargetGrade int   `json:"target_grade"`
	} `json:"projects"`
	Tasks []struct {
		ID               int64 `json:"id"`
		ProjectID        int64 `json:"project_id"`
		TaskDefinitionID int64 `json:"task_definition_id"`
	} `json:"tasks"`
}

// LoadSeed decodes users, projects and tasks from r into the store.
func LoadSeed(store *MemoryStore, r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for _, u := range seed.Users {
		role := domain.Role(u.Role)
		if !role.Valid() {
			return fmt.Errorf("seed user %d: unknown role %q", u.ID, u.Role)
		}
		store.PutUser(domain.User{
			ID:        u.ID,
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
			Role:      role,
		})
	}
	for _, p := range seed.Projects {
		store.PutProject(domain.Project{ID: p.ID, UserID: p.UserID, UnitID: p.UnitID, TargetGrade: p.TargetGrade})
	}
	for _, t := range seed.Tasks {
		store.PutTask(domain.Task{ID: t.ID, ProjectID: t.ProjectID, TaskDefinitionID: t.TaskDefinitionID})
	}
	return nil
}
