package rewardconfig

import (
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// RewardConfig is a named set of earning rules. At most one config is active
// system-wide; the active one governs every new calculation.
type RewardConfig struct {
	ID               string         `gorm:"column:id;primaryKey"`
	Name             string         `gorm:"column:name;not null"`
	Description      string         `gorm:"column:description"`
	IsActive         bool           `gorm:"column:is_active;index"`
	BaseRate         float64        `gorm:"column:base_rate;not null"`
	SeasonMultiplier float64        `gorm:"column:season_multiplier;default:1"`
	CategoryRules    datatypes.JSON `gorm:"column:category_rules"`
	CreatedBy        string         `gorm:"column:created_by"`
	CreatedAt        time.Time      `gorm:"column:created_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at"`
}

func (RewardConfig) TableName() string {
	return "reward_configs"
}

// ParseCategoryRules decodes the per-category multiplier document. A
// malformed document or rule value degrades to "no bonus" for that category;
// it never fails, because a bad stored rule must not block an order.
func (c *RewardConfig) ParseCategoryRules() map[string]float64 {
	rules := make(map[string]float64)
	if len(c.CategoryRules) == 0 {
		return rules
	}

	var raw map[string]any
	if err := json.Unmarshal(c.CategoryRules, &raw); err != nil {
		zap.L().Warn("malformed category rules, ignoring",
			zap.String("config_id", c.ID),
			zap.Error(err),
		)
		return rules
	}

	for category, value := range raw {
		switch v := value.(type) {
		case float64:
			if v > 0 {
				rules[category] = v
			}
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				rules[category] = f
			}
		}
	}

	return rules
}

// Season is a promotional window with its own multiplier. Single-active
// invariant, independent from RewardConfig.
type Season struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	StartDate   string    `gorm:"column:start_date"`
	EndDate     string    `gorm:"column:end_date"`
	Multiplier  float64   `gorm:"column:multiplier;default:1"`
	Description string    `gorm:"column:description"`
	IsActive    bool      `gorm:"column:is_active;index"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (Season) TableName() string {
	return "seasons"
}
