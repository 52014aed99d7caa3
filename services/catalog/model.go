package catalog

import "time"

type Product struct {
	ID          string    `gorm:"column:id;primaryKey"`
	ClinicID    string    `gorm:"column:clinic_id;index"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description"`
	Category    string    `gorm:"column:category;index"`
	Price       float64   `gorm:"column:price"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (Product) TableName() string {
	return "products"
}
