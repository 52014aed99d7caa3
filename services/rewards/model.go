package rewards

import "time"

type EntryType string

const (
	Earned   EntryType = "earned"
	Redeemed EntryType = "redeemed"
)

func (t EntryType) Valid() bool {
	return t == Earned || t == Redeemed
}

// LedgerEntry is one signed point transaction attributed to a patient and a
// source event. Entries are append-only; the balance is derived, never
// stored.
type LedgerEntry struct {
	ID          string    `gorm:"column:id;primaryKey"`
	PatientID   string    `gorm:"column:patient_id;index;not null"`
	Points      int64     `gorm:"column:points;not null"`
	Description string    `gorm:"column:description"`
	SourceID    string    `gorm:"column:source_id;index"`
	Type        EntryType `gorm:"column:type;type:varchar(20);not null"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (LedgerEntry) TableName() string {
	return "reward_points"
}

type CardStatus string

const (
	CardActive   CardStatus = "active"
	CardInactive CardStatus = "inactive"
	CardExpired  CardStatus = "expired"
)

// RewardCard is the patient's display card. One per patient, created lazily
// on first request.
type RewardCard struct {
	ID         string     `gorm:"column:id;primaryKey"`
	PatientID  string     `gorm:"column:patient_id;uniqueIndex;not null"`
	CardNumber string     `gorm:"column:card_number;uniqueIndex;not null"`
	IssuedDate string     `gorm:"column:issued_date"`
	Status     CardStatus `gorm:"column:status;type:varchar(20);default:'active'"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at"`
}

func (RewardCard) TableName() string {
	return "reward_cards"
}

type PartnerShop struct {
	ID          string                 `gorm:"column:id;primaryKey" json:"id"`
	Name        string                 `gorm:"column:name;not null" json:"name"`
	Description string                 `gorm:"column:description" json:"description"`
	Location    string                 `gorm:"column:location" json:"location"`
	Website     string                 `gorm:"column:website" json:"website"`
	LogoURL     string                 `gorm:"column:logo_url" json:"logo_url"`
	CreatedAt   time.Time              `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time              `gorm:"column:updated_at" json:"updated_at"`
	Categories  []PartnerShopCategory `gorm:"foreignKey:PartnerShopID" json:"categories"`
}

func (PartnerShop) TableName() string {
	return "partner_shops"
}

type PartnerShopCategory struct {
	ID            string `gorm:"column:id;primaryKey" json:"id"`
	PartnerShopID string `gorm:"column:partner_shop_id;index" json:"partner_shop_id"`
	Name          string `gorm:"column:name" json:"name"`
}

func (PartnerShopCategory) TableName() string {
	return "partner_shop_categories"
}
