package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubsphere/clubsphere-backend/pkg/enums"
)

// Club is a group members can join once an admin approves it.
type Club struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string             `gorm:"column:name;not null"`
	Description        string             `gorm:"column:description;not null;default:''"`
	Category           enums.ClubCategory `gorm:"column:category;not null"`
	Location           string             `gorm:"column:location;not null;default:''"`
	BannerImage        *string            `gorm:"column:banner_image"`
	ManagerID          uuid.UUID          `gorm:"column:manager_id;type:uuid;not null"`
	MembershipFeeCents int64              `gorm:"column:membership_fee_cents;not null;default:0"`
	Status             enums.ClubStatus   `gorm:"column:status;type:club_status;not null;default:'pending'"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Club) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsFree reports whether joining the club needs no payment.
func (c *Club) IsFree() bool {
	return c.MembershipFeeCents == 0
}
