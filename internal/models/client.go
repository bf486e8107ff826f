package models

import (
	"time"

	"gorm.io/gorm"
)

type ClientStatus string

const (
	ClientActive   ClientStatus = "active"
	ClientArchived ClientStatus = "archived"
)

// Client is a minimal client record scoped to one therapist. Anonymous public
// submissions are attached to an existing client by email match, or to a new
// active client created on the fly.
type Client struct {
	ID       uint         `json:"id" gorm:"primaryKey"`
	FullName string       `json:"full_name" gorm:"not null;size:200"`
	Email    string       `json:"email" gorm:"not null;size:255;index:idx_client_therapist_email"`
	Status   ClientStatus `json:"status" gorm:"default:active;index"`

	// ClientCode is a generated, human-unreadable identifier.
	ClientCode string `json:"client_code" gorm:"uniqueIndex;not null;size:40"`

	TherapistID string `json:"therapist_id" gorm:"not null;size:255;index:idx_client_therapist_email"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Submissions []Submission `json:"-" gorm:"foreignKey:ClientID"`
}

func (Client) TableName() string {
	return "clients"
}
