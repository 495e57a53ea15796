package models

import (
	"time"

	"github.com/google/uuid"
)

type Asset struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Symbol          string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_assets_symbol_network"`
	Network         string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_assets_symbol_network"`
	Name            string    `gorm:"type:varchar(100);not null"`
	Decimals        int       `gorm:"not null"`
	ContractAddress string    `gorm:"type:varchar(255)"`
	IsNative        bool      `gorm:"not null;default:false"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Asset) TableName() string {
	return "assets"
}
