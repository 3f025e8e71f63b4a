package model

import "time"

// Project is the root of a board. The owner is the only user allowed to
// mutate it or anything beneath it; members may read.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     int64     `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectBoard is the fixed-shape aggregate returned by GET /api/projects/{id}:
// the project, its rows in creation order with their work items, and its members.
type ProjectBoard struct {
	Project
	Rows    []RowWithItems `json:"rows"`
	Members []PublicUser   `json:"members"`
}
