// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User is a registered account.
//
// PasswordHash carries the `json:"-"` tag so the bcrypt digest can never leak
// through an API response, even if a handler encodes a *User by mistake.
// Handlers should still prefer Public() when returning users to clients.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicUser is the summary of a user that is safe to hand to any client:
// id, email and display name. Nothing else.
type PublicUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Public strips the user down to its public summary.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name}
}
