package models

import "time"

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:30;uniqueIndex;not null" json:"username"`
	Email     *string   `gorm:"size:191;uniqueIndex" json:"email,omitempty"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Status    string    `gorm:"type:enum('Active','Inactive','Suspend');default:'Active'" json:"status"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}
