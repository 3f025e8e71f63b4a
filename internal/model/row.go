package model

import "time"

// Row is a named column inside a project. Rows have no explicit rank:
// they are listed in creation order (ascending id).
type Row struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ProjectID int64     `json:"projectId"`
	CreatedAt time.Time `json:"createdAt"`
}

// RowWithItems is a row together with the work items it currently holds.
type RowWithItems struct {
	Row
	WorkItems []WorkItem `json:"workItems"`
}

// RowDetails is a row together with its parent project.
type RowDetails struct {
	Row
	Project Project `json:"project"`
}
