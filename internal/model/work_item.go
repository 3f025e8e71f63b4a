package model

import "time"

// WorkItem is a card. RowID is the only placement the server knows about:
// moving a card between rows reassigns RowID, while the order of cards
// inside a row is a client-side concern and is never persisted.
type WorkItem struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	RowID       int64     `json:"rowId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// WorkItemDetails is the fixed-shape aggregate returned by GET /api/work-items/{id}.
// Comments are ordered most recent first.
type WorkItemDetails struct {
	WorkItem
	Files    []File    `json:"files"`
	Comments []Comment `json:"comments"`
}
