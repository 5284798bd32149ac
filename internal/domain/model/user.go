package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) IsAdmin() bool { return r == RoleAdmin }

// 購入者と管理者。注文・決済からはIDとメール宛先しか見ない
type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string `gorm:"type:varchar(100)"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'"`

	// logout-allでインクリメント。JWTのtvと違えば401
	TokenVersion int `gorm:"not null;default:0"`
	// falseならログインも既存トークンも拒否
	IsActive bool `gorm:"not null;default:true"`

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
