package model

import "time"

// Comment is a note left on a work item by a user.
// User is populated when comments are listed for display.
type Comment struct {
	ID         int64       `json:"id"`
	Content    string      `json:"content"`
	UserID     int64       `json:"userId"`
	WorkItemID int64       `json:"workItemId"`
	CreatedAt  time.Time   `json:"createdAt"`
	User       *PublicUser `json:"user,omitempty"`
}
