package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type ReviewModel struct {
	ID          string    `gorm:"primaryKey"`
	IdentityID  string    `gorm:"uniqueIndex;not null"`
	DisplayName string    `gorm:"not null"`
	Rating      int       `gorm:"not null"`
	Body        string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

type ProjectModel struct {
	ID                 string         `gorm:"primaryKey"`
	Title              string         `gorm:"not null"`
	Description        string         `gorm:"type:text"`
	Category           string         `gorm:"not null;index"`
	Tools              datatypes.JSON `gorm:"type:jsonb"`
	ImageKey           string
	Status             string `gorm:"not null"`
	StartDate          time.Time
	DeliveryDate       *time.Time
	DeliveredOnTime    bool
	ClientSatisfaction bool
	CreatedAt          time.Time `gorm:"not null;index"`
	UpdatedAt          time.Time `gorm:"not null"`
}

type ContentModel struct {
	ID        string    `gorm:"primaryKey"`
	Page      string    `gorm:"not null;uniqueIndex:idx_page_section"`
	Section   string    `gorm:"not null;uniqueIndex:idx_page_section"`
	Content   string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type AdminModel struct {
	IdentityID string    `gorm:"primaryKey"`
	CreatedAt  time.Time `gorm:"not null"`
}
