package model

import "time"

type Product struct {
	ID          int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"type:varchar(150);uniqueIndex;not null" json:"name"`
	Description string  `gorm:"type:text" json:"description"`
	Price       float64 `gorm:"not null" json:"price"`

	//在庫数。負の値にはならない
	Inventory int64 `gorm:"not null" json:"inventory"`

	//作成・更新した管理者
	CreatedBy *int64 `gorm:"index" json:"created_by"`
	UpdatedBy *int64 `gorm:"index" json:"updated_by"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
