package models

import "time"

// Client is the billed party of a recurring contract. Only the fields the
// recurrence engine needs for display are modelled here.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	LegalName string    `gorm:"type:varchar(255);not null" json:"legal_name"`
	Document  string    `gorm:"type:varchar(32);index" json:"document"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
