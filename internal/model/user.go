// Package model defines the gorm models and the value types shared across layers.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User maps an identity-provider subject to the internal id that owns files.
type User struct {
	ID         string    `gorm:"type:char(36);primaryKey" json:"id"`
	ExternalID string    `gorm:"type:varchar(191);not null;uniqueIndex:users_external_id_key" json:"externalId"`
	Email      string    `gorm:"type:varchar(191);not null;uniqueIndex:users_email_key" json:"email"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
