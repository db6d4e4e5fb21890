package models

import "time"

// User roles recognised by the platform.
const (
	RoleResearcher  = "researcher"
	RoleParticipant = "participant"
	RoleAdmin       = "admin"
)

// User represents a platform account. Authentication is handled upstream;
// the engine only needs identity and role for authorization checks.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FullName  string    `gorm:"size:255;not null" json:"full_name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:32;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsResearcher reports whether the user can own quizzes and grade submissions.
func (u User) IsResearcher() bool {
	return u.Role == RoleResearcher
}

// IsParticipant reports whether the user can receive and take quiz assignments.
func (u User) IsParticipant() bool {
	return u.Role == RoleParticipant
}
