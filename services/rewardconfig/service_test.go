package rewardconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"

	"caremarket-rewards/pkg/errutil"
	"caremarket-rewards/pkg/identity"
	"caremarket-rewards/pkg/repository"
	"caremarket-rewards/services/testutil"
)

var (
	admin   = identity.Identity{ID: "admin-1", Role: identity.RoleAdmin}
	clinic  = identity.Identity{ID: "clinic-1", Role: identity.RoleClinic}
	patient = identity.Identity{ID: "patient-1", Role: identity.RolePatient}
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &RewardConfig{}, &Season{})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &Service{
		db:      db,
		node:    node,
		configs: repository.ProvideStore[RewardConfig](db),
		seasons: repository.ProvideStore[Season](db),
		cache:   NewActiveCache(nil),
	}
}

func countActiveConfigs(t *testing.T, svc *Service) int64 {
	t.Helper()

	var n int64
	require.NoError(t, svc.db.Model(&RewardConfig{}).
		Where("is_active = ?", true).
		Count(&n).Error)
	return n
}

func countActiveSeasons(t *testing.T, svc *Service) int64 {
	t.Helper()

	var n int64
	require.NoError(t, svc.db.Model(&Season{}).
		Where("is_active = ?", true).
		Count(&n).Error)
	return n
}

func requireStatus(t *testing.T, err error, status errutil.CoreStatus) {
	t.Helper()

	require.Error(t, err)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be), "expected BaseError, got %T", err)
	require.Equal(t, status, be.Status())
}

func ptr[T any](v T) *T { return &v }

func TestConfigManagementRequiresAdmin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, ident := range []identity.Identity{clinic, patient} {
		_, err := svc.CreateConfig(ctx, ident, ConfigInput{Name: "n", BaseRate: 10})
		requireStatus(t, err, errutil.StatusForbidden)

		_, err = svc.ListConfigs(ctx, ident)
		requireStatus(t, err, errutil.StatusForbidden)

		_, err = svc.ActivateConfig(ctx, ident, "whatever")
		requireStatus(t, err, errutil.StatusForbidden)
	}
}

func TestCreateActiveConfigDeactivatesPrevious(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateConfig(ctx, admin, ConfigInput{
		Name: "standard", BaseRate: 10, IsActive: true,
	})
	require.NoError(t, err)

	second, err := svc.CreateConfig(ctx, admin, ConfigInput{
		Name: "promo", BaseRate: 20, IsActive: true,
	})
	require.NoError(t, err)

	require.EqualValues(t, 1, countActiveConfigs(t, svc))

	got, err := svc.GetConfig(ctx, admin, first.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	got, err = svc.GetConfig(ctx, admin, second.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)
}

func TestActivateConfigKeepsSingleActive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateConfig(ctx, admin, ConfigInput{
		Name: "standard", BaseRate: 10, IsActive: true,
	})
	require.NoError(t, err)

	second, err := svc.CreateConfig(ctx, admin, ConfigInput{
		Name: "promo", BaseRate: 20,
	})
	require.NoError(t, err)

	activated, err := svc.ActivateConfig(ctx, admin, second.ID)
	require.NoError(t, err)
	require.True(t, activated.IsActive)
	require.EqualValues(t, 1, countActiveConfigs(t, svc))

	got, err := svc.GetConfig(ctx, admin, first.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	// Re-activating the active config is a no-op for the invariant.
	_, err = svc.ActivateConfig(ctx, admin, second.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, countActiveConfigs(t, svc))
}

func TestActivateMissingConfig(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ActivateConfig(context.Background(), admin, "missing")
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestDeactivateConfigLeavesZeroActive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.CreateConfig(ctx, admin, ConfigInput{
		Name: "standard", BaseRate: 25, IsActive: true,
	})
	require.NoError(t, err)

	got, err := svc.DeactivateConfig(ctx, admin, cfg.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
	require.EqualValues(t, 0, countActiveConfigs(t, svc))

	// With no active config the calculator falls back to defaults.
	result, err := svc.Calculate(ctx, CalculateRequest{Price: 5, Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, int64(100), result.Points)
	require.Equal(t, "Using default configuration", result.Breakdown.Note)
}

func TestDeleteConfig(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.CreateConfig(ctx, admin, ConfigInput{
		Name: "standard", BaseRate: 10, IsActive: true,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteConfig(ctx, admin, cfg.ID))
	require.EqualValues(t, 0, countActiveConfigs(t, svc))

	err = svc.DeleteConfig(ctx, admin, cfg.ID)
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestUpdateConfigActivation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateConfig(ctx, admin, ConfigInput{
		Name: "standard", BaseRate: 10, IsActive: true,
	})
	require.NoError(t, err)

	second, err := svc.CreateConfig(ctx, admin, ConfigInput{
		Name: "promo", BaseRate: 20,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateConfig(ctx, admin, second.ID, ConfigUpdate{
		IsActive: ptr(true),
		BaseRate: ptr(15.0),
	})
	require.NoError(t, err)
	require.True(t, updated.IsActive)
	require.Equal(t, 15.0, updated.BaseRate)
	require.EqualValues(t, 1, countActiveConfigs(t, svc))

	got, err := svc.GetConfig(ctx, admin, first.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestUpdateConfigValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.CreateConfig(ctx, admin, ConfigInput{Name: "standard", BaseRate: 10})
	require.NoError(t, err)

	_, err = svc.UpdateConfig(ctx, admin, cfg.ID, ConfigUpdate{BaseRate: ptr(0.0)})
	requireStatus(t, err, errutil.StatusValidationFailed)

	_, err = svc.UpdateConfig(ctx, admin, "missing", ConfigUpdate{Name: ptr("x")})
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestCreateConfigValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateConfig(context.Background(), admin, ConfigInput{Name: "bad", BaseRate: 0})
	requireStatus(t, err, errutil.StatusValidationFailed)
}

func TestSeasonValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateSeason(ctx, admin, SeasonInput{Name: "holiday", Multiplier: 0})
	requireStatus(t, err, errutil.StatusValidationFailed)

	_, err = svc.CreateSeason(ctx, admin, SeasonInput{
		Name:       "holiday",
		Multiplier: 2,
		StartDate:  "12/01/2025",
	})
	requireStatus(t, err, errutil.StatusValidationFailed)
}

func TestSeasonActivationIsIndependentOfConfigs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.CreateConfig(ctx, admin, ConfigInput{
		Name: "standard", BaseRate: 10, IsActive: true,
	})
	require.NoError(t, err)

	winter, err := svc.CreateSeason(ctx, admin, SeasonInput{
		Name: "winter", Multiplier: 2, IsActive: true,
		StartDate: "2026-12-01", EndDate: "2026-12-31",
	})
	require.NoError(t, err)

	spring, err := svc.CreateSeason(ctx, admin, SeasonInput{
		Name: "spring", Multiplier: 1.5,
	})
	require.NoError(t, err)

	_, err = svc.ActivateSeason(ctx, admin, spring.ID)
	require.NoError(t, err)

	require.EqualValues(t, 1, countActiveSeasons(t, svc))
	require.EqualValues(t, 1, countActiveConfigs(t, svc))

	got, err := svc.GetSeason(ctx, admin, winter.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	gotCfg, err := svc.GetConfig(ctx, admin, cfg.ID)
	require.NoError(t, err)
	require.True(t, gotCfg.IsActive)
}

func TestCalculateUsesActivePair(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateConfig(ctx, admin, ConfigInput{
		Name:     "standard",
		BaseRate: 10,
		IsActive: true,
		CategoryRules: map[string]float64{
			"Supplements": 1.5,
		},
	})
	require.NoError(t, err)

	_, err = svc.CreateSeason(ctx, admin, SeasonInput{
		Name: "holiday", Multiplier: 2, IsActive: true,
	})
	require.NoError(t, err)

	result, err := svc.Calculate(ctx, CalculateRequest{
		Category: "Supplements",
		Price:    20.00,
		Quantity: 2,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1200), result.Points)
	require.Equal(t, 2.0, result.SeasonalMultiplier)
	require.Equal(t, 1.5, result.CategoryMultiplier)
}

type staticResolver map[string]string

func (r staticResolver) ResolveCategory(_ context.Context, productID string) (string, error) {
	return r[productID], nil
}

func TestCalculateResolvesProductCategory(t *testing.T) {
	svc := newTestService(t)
	svc.catalog = staticResolver{"prod-1": "Supplements"}
	ctx := context.Background()

	_, err := svc.CreateConfig(ctx, admin, ConfigInput{
		Name:     "standard",
		BaseRate: 10,
		IsActive: true,
		CategoryRules: map[string]float64{
			"Supplements": 1.5,
		},
	})
	require.NoError(t, err)

	result, err := svc.Calculate(ctx, CalculateRequest{
		ProductID: "prod-1",
		Price:     10,
		Quantity:  1,
	})
	require.NoError(t, err)
	require.Equal(t, 1.5, result.CategoryMultiplier)
	require.Equal(t, int64(150), result.Points)

	// Unknown products calculate with the neutral multiplier.
	result, err = svc.Calculate(ctx, CalculateRequest{
		ProductID: "prod-404",
		Price:     10,
		Quantity:  1,
	})
	require.NoError(t, err)
	require.Equal(t, 1.0, result.CategoryMultiplier)
}
