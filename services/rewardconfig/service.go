package rewardconfig

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"caremarket-rewards/pkg/errutil"
	"caremarket-rewards/pkg/identity"
	"caremarket-rewards/pkg/repository"
)

// CategoryResolver maps a product id to its category. Implemented by the
// catalog service; the calculator only needs this one method of it.
type CategoryResolver interface {
	ResolveCategory(ctx context.Context, productID string) (string, error)
}

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	configs repository.Repository[RewardConfig]
	seasons repository.Repository[Season]

	cache   *ActiveCache
	catalog CategoryResolver
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Redis   *redis.Client    `optional:"true"`
	Catalog CategoryResolver `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		configs: repository.ProvideStore[RewardConfig](p.DB),
		seasons: repository.ProvideStore[Season](p.DB),

		cache:   NewActiveCache(p.Redis),
		catalog: p.Catalog,
	}
}

// ======================================================
// Reward configurations
// ======================================================

type ConfigInput struct {
	Name             string             `json:"name" binding:"required"`
	Description      string             `json:"description"`
	IsActive         bool               `json:"is_active"`
	BaseRate         float64            `json:"base_rate" binding:"required"`
	SeasonMultiplier float64            `json:"season_multiplier"`
	CategoryRules    map[string]float64 `json:"category_rules"`
}

type ConfigUpdate struct {
	Name             *string             `json:"name"`
	Description      *string             `json:"description"`
	IsActive         *bool               `json:"is_active"`
	BaseRate         *float64            `json:"base_rate"`
	SeasonMultiplier *float64            `json:"season_multiplier"`
	CategoryRules    *map[string]float64 `json:"category_rules"`
}

func (s *Service) CreateConfig(ctx context.Context, ident identity.Identity, in ConfigInput) (*RewardConfig, error) {
	if !ident.IsAdmin() {
		return nil, errutil.Forbidden("only administrators can manage reward configurations", nil)
	}

	if in.BaseRate <= 0 {
		return nil, errutil.ValidationFailed("base_rate must be positive", nil)
	}
	if in.SeasonMultiplier == 0 {
		in.SeasonMultiplier = 1.0
	}

	now := time.Now()
	config := &RewardConfig{
		ID:               s.node.Generate().String(),
		Name:             in.Name,
		Description:      in.Description,
		IsActive:         in.IsActive,
		BaseRate:         in.BaseRate,
		SeasonMultiplier: in.SeasonMultiplier,
		CategoryRules:    marshalRules(in.CategoryRules),
		CreatedBy:        ident.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if config.IsActive {
			if err := deactivateAll[RewardConfig](tx); err != nil {
				return err
			}
		}
		return s.configs.WithTrx(tx).Create(ctx, config)
	}); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)

	return config, nil
}

func (s *Service) ListConfigs(ctx context.Context, ident identity.Identity) ([]*RewardConfig, error) {
	if !ident.IsAdmin() {
		return nil, errutil.Forbidden("only administrators can view reward configurations", nil)
	}

	var configs []*RewardConfig
	if err := s.db.WithContext(ctx).
		Order("is_active DESC, created_at DESC").
		Find(&configs).Error; err != nil {
		return nil, err
	}

	return configs, nil
}

func (s *Service) GetConfig(ctx context.Context, ident identity.Identity, configID string) (*RewardConfig, error) {
	if !ident.IsAdmin() {
		return nil, errutil.Forbidden("only administrators can view reward configurations", nil)
	}

	config, err := s.configs.FindOne(ctx, &RewardConfig{ID: configID})
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errutil.NotFound("reward configuration not found", nil)
	}

	return config, nil
}

func (s *Service) UpdateConfig(ctx context.Context, ident identity.Identity, configID string, in ConfigUpdate) (*RewardConfig, error) {
	if !ident.IsAdmin() {
		return nil, errutil.Forbidden("only administrators can manage reward configurations", nil)
	}

	config, err := s.configs.FindOne(ctx, &RewardConfig{ID: configID})
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errutil.NotFound("reward configuration not found", nil)
	}

	if in.Name != nil {
		config.Name = *in.Name
	}
	if in.Description != nil {
		config.Description = *in.Description
	}
	if in.BaseRate != nil {
		if *in.BaseRate <= 0 {
			return nil, errutil.ValidationFailed("base_rate must be positive", nil)
		}
		config.BaseRate = *in.BaseRate
	}
	if in.SeasonMultiplier != nil {
		config.SeasonMultiplier = *in.SeasonMultiplier
	}
	if in.CategoryRules != nil {
		config.CategoryRules = marshalRules(*in.CategoryRules)
	}

	activating := in.IsActive != nil && *in.IsActive && !config.IsActive
	if in.IsActive != nil {
		config.IsActive = *in.IsActive
	}
	config.UpdatedAt = time.Now()

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if activating {
			if err := deactivateAll[RewardConfig](tx); err != nil {
				return err
			}
		}
		return tx.Save(config).Error
	}); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)

	return config, nil
}

func (s *Service) DeleteConfig(ctx context.Context, ident identity.Identity, configID string) error {
	if !ident.IsAdmin() {
		return errutil.Forbidden("only administrators can manage reward configurations", nil)
	}

	// Deleting the active config is allowed and leaves zero active records;
	// the calculator then uses defaults.
	res := s.db.WithContext(ctx).Delete(&RewardConfig{}, "id = ?", configID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("reward configuration not found", nil)
	}

	s.cache.Invalidate(ctx)

	return nil
}

// ActivateConfig makes the target the single active configuration. The
// deactivate-all-then-activate-one sequence runs in one transaction so two
// concurrent activations cannot leave two active rows.
func (s *Service) ActivateConfig(ctx context.Context, ident identity.Identity, configID string) (*RewardConfig, error) {
	if !ident.IsAdmin() {
		return nil, errutil.Forbidden("only administrators can manage reward configurations", nil)
	}

	span := trace.SpanFromContext(ctx)
	fields := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("config_id", configID),
	}

	if err := s.activate(ctx, &RewardConfig{}, configID); err != nil {
		zap.L().With(fields...).Error("failed to activate reward configuration", zap.Error(err))
		return nil, err
	}

	s.cache.Invalidate(ctx)
	zap.L().With(fields...).Info("reward configuration activated")

	return s.GetConfig(ctx, ident, configID)
}

func (s *Service) DeactivateConfig(ctx context.Context, ident identity.Identity, configID string) (*RewardConfig, error) {
	if !ident.IsAdmin() {
		return nil, errutil.Forbidden("only administrators can manage reward configurations", nil)
	}

	if err := s.deactivate(ctx, &RewardConfig{}, configID); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)

	return s.GetConfig(ctx, ident, configID)
}

// ======================================================
// Seasons
// ======================================================

type SeasonInput struct {
	Name        string  `json:"name" binding:"required"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Multiplier  float64 `json:"multiplier" binding:"required"`
	Description string  `json:"description"`
	IsActive    bool    `json:"is_active"`
}

type SeasonUpdate struct {
	Name        *string  `json:"name"`
	StartDate   *string  `json:"start_date"`
	EndDate     *string  `json:"end_date"`
	Multiplier  *float64 `json:"multiplier"`
	Description *string  `json:"description"`
	IsActive    *bool    `json:"is_active"`
}

func (s *Service) CreateSeason(ctx context.Context, ident identity.Identity, in SeasonInput) (*Season, error) {
	if !ident.IsAdmin() {
		return nil, errutil.Forbidden("only administrators can manage seasons", nil)
	}

	if in.Multiplier <= 0 {
		return nil, errutil.ValidationFailed("multiplier must be positive", nil)
	}
	if err := validateSeasonDates(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	now := time.Now()
	season := &Season{
		ID:          s.node.Generate().String(),
		Name:        in.Name,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Multiplier:  in.Multiplier,
		Description: in.Description,
		IsActive:    in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if season.IsActive {
			if err := deactivateAll[Season](tx); err != nil {
				return err
			}
		}
		return s.seasons.WithTrx(tx).Create(ctx, season)
	}); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)

	return season, nil
}

func (s *Service) ListSeasons(ctx context.Context, ident identity.Identity) ([]*Season, error) {
	if !ident.IsAdmin() {
		return nil, errutil.Forbidden("only administrators can view seasons", nil)
	}

	var seasons []*Season
	if err := s.db.WithContext(ctx).
		Order("is_active DESC, start_date DESC").
		Find(&seasons).Error; err != nil {
		return nil, err
	}

	return seasons, nil
}

func (s *Service) GetSeason(ctx context.Context, ident identity.Identity, seasonID string) (*Season, error) {
	if !ident.IsAdmin() {
		return nil, errutil.Forbidden("only administrators can view seasons", nil)
	}

	season, err := s.seasons.FindOne(ctx, &Season{ID: seasonID})
	if err != nil {
		return nil, err
	}
	if season == nil {
		return nil, errutil.NotFound("season not found", nil)
	}

	return season, nil
}

func (s *Service) UpdateSeason(ctx context.Context, ident identity.Identity, seasonID string, in SeasonUpdate) (*Season, error) {
	if !ident.IsAdmin() {
		return nil, errutil.Forbidden("only administrators can manage seasons", nil)
	}

	season, err := s.seasons.FindOne(ctx, &Season{ID: seasonID})
	if err != nil {
		return nil, err
	}
	if season == nil {
		return nil, errutil.NotFound("season not found", nil)
	}

	if in.Name != nil {
		season.Name = *in.Name
	}
	if in.StartDate != nil {
		season.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		season.EndDate = *in.EndDate
	}
	if err := validateSeasonDates(season.StartDate, season.EndDate); err != nil {
		return nil, err
	}
	if in.Multiplier != nil {
		if *in.Multiplier <= 0 {
			return nil, errutil.ValidationFailed("multiplier must be positive", nil)
		}
		season.Multiplier = *in.Multiplier
	}
	if in.Description != nil {
		season.Description = *in.Description
	}

	activating := in.IsActive != nil && *in.IsActive && !season.IsActive
	if in.IsActive != nil {
		season.IsActive = *in.IsActive
	}
	season.UpdatedAt = time.Now()

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if activating {
			if err := deactivateAll[Season](tx); err != nil {
				return err
			}
		}
		return tx.Save(season).Error
	}); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)

	return season, nil
}

func (s *Service) DeleteSeason(ctx context.Context, ident identity.Identity, seasonID string) error {
	if !ident.IsAdmin() {
		return errutil.Forbidden("only administrators can manage seasons", nil)
	}

	res := s.db.WithContext(ctx).Delete(&Season{}, "id = ?", seasonID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("season not found", nil)
	}

	s.cache.Invalidate(ctx)

	return nil
}

func (s *Service) ActivateSeason(ctx context.Context, ident identity.Identity, seasonID string) (*Season, error) {
	if !ident.IsAdmin() {
		return nil, errutil.Forbidden("only administrators can manage seasons", nil)
	}

	if err := s.activate(ctx, &Season{}, seasonID); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)

	return s.GetSeason(ctx, ident, seasonID)
}

func (s *Service) DeactivateSeason(ctx context.Context, ident identity.Identity, seasonID string) (*Season, error) {
	if !ident.IsAdmin() {
		return nil, errutil.Forbidden("only administrators can manage seasons", nil)
	}

	if err := s.deactivate(ctx, &Season{}, seasonID); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)

	return s.GetSeason(ctx, ident, seasonID)
}

// ======================================================
// Calculation
// ======================================================

type CalculateRequest struct {
	ProductID string  `json:"product_id"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Calculate resolves the active configuration/season pair and runs the point
// calculation. Available to any authenticated principal; it mutates nothing.
func (s *Service) Calculate(ctx context.Context, in CalculateRequest) (*Calculation, error) {
	category := in.Category
	if category == "" && in.ProductID != "" && s.catalog != nil {
		resolved, err := s.catalog.ResolveCategory(ctx, in.ProductID)
		if err != nil {
			// A failed lookup must not block the calculation.
			zap.L().Warn("category lookup failed", zap.String("product_id", in.ProductID), zap.Error(err))
		} else {
			category = resolved
		}
	}

	config, season := s.activePair(ctx)

	return CalculatePoints(CalculationInput{
		Category: category,
		Price:    in.Price,
		Quantity: in.Quantity,
	}, config, season)
}

func (s *Service) activePair(ctx context.Context) (*RewardConfig, *Season) {
	if pair, ok := s.cache.Get(ctx); ok {
		return pair.Config, pair.Season
	}

	config, err := s.configs.FindOne(ctx, &RewardConfig{IsActive: true})
	if err != nil {
		zap.L().Error("failed to load active reward configuration", zap.Error(err))
		return nil, nil
	}

	season, err := s.seasons.FindOne(ctx, &Season{IsActive: true})
	if err != nil {
		zap.L().Error("failed to load active season", zap.Error(err))
		season = nil
	}

	s.cache.Set(ctx, &activePair{Config: config, Season: season})

	return config, season
}

// ======================================================
// Helper Functions
// ======================================================

func marshalRules(rules map[string]float64) datatypes.JSON {
	if rules == nil {
		rules = map[string]float64{}
	}
	raw, _ := json.Marshal(rules)
	return datatypes.JSON(raw)
}

func validateSeasonDates(start, end string) error {
	for _, date := range []string{start, end} {
		if date == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return errutil.ValidationFailed("dates must use YYYY-MM-DD", err)
		}
	}
	return nil
}

func deactivateAll[T any](tx *gorm.DB) error {
	return tx.Model(new(T)).
		Where("is_active = ?", true).
		Update("is_active", false).Error
}

func (s *Service) activate(ctx context.Context, model any, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(model).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}

		res := tx.Model(model).
			Where("id = ?", id).
			Updates(map[string]any{"is_active": true, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.NotFound("record not found", nil)
		}

		return nil
	})
}

func (s *Service) deactivate(ctx context.Context, model any, id string) error {
	res := s.db.WithContext(ctx).Model(model).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("record not found", nil)
	}
	return nil
}
