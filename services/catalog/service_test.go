package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"caremarket-rewards/pkg/errutil"
	"caremarket-rewards/pkg/identity"
	"caremarket-rewards/pkg/repository"
	"caremarket-rewards/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Product{})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &Service{
		db:       db,
		node:     node,
		products: repository.ProvideStore[Product](db),
	}
}

func TestCreateProductAuthorization(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, identity.Identity{ID: "p-1", Role: identity.RolePatient}, ProductInput{Name: "Vitamin D"})
	require.Error(t, err)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusForbidden, be.Status())

	product, err := svc.CreateProduct(ctx, identity.Identity{ID: "c-1", Role: identity.RoleClinic}, ProductInput{
		Name:     "Vitamin D",
		Category: "Supplements",
		Price:    9.99,
	})
	require.NoError(t, err)
	require.Equal(t, "c-1", product.ClinicID)
}

func TestResolveCategory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	clinic := identity.Identity{ID: "c-1", Role: identity.RoleClinic}

	product, err := svc.CreateProduct(ctx, clinic, ProductInput{
		Name:     "Vitamin D",
		Category: "Supplements",
		Price:    9.99,
	})
	require.NoError(t, err)

	category, err := svc.ResolveCategory(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, "Supplements", category)

	category, err = svc.ResolveCategory(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, category)
}

func TestGetProductNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetProduct(context.Background(), "missing")
	require.Error(t, err)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusNotFound, be.Status())
}
