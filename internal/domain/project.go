package domain

// Project is a student's enrolment in a unit.
type Project struct {
	ID          int64
	UserID      int64
	UnitID      int64
	TargetGrade int
}

// Task is a project's instance of a unit task definition.
type Task struct {
	ID               int64
	ProjectID        int64
	TaskDefinitionID int64
}
