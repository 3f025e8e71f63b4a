package model

import "time"

// File is an upload attached to a work item.
// Filename is the name the client uploaded; Path is the public URL path
// of the stored blob (e.g. "/uploads/1718000000000-cv37rs3pp9olc6atsptg-notes.txt").
type File struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	WorkItemID int64     `json:"workItemId"`
	CreatedAt  time.Time `json:"createdAt"`
}
