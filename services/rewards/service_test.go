package rewards

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"caremarket-rewards/pkg/db/pagination"
	"caremarket-rewards/pkg/errutil"
	"caremarket-rewards/pkg/identity"
	"caremarket-rewards/pkg/repository"
	"caremarket-rewards/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var (
	admin   = identity.Identity{ID: "admin-1", Role: identity.RoleAdmin}
	clinic  = identity.Identity{ID: "clinic-1", Role: identity.RoleClinic}
	patient = identity.Identity{ID: "patient-1", Role: identity.RolePatient}
)

var cardNumberPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{4}$`)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t,
		&LedgerEntry{}, &RewardCard{}, &PartnerShop{}, &PartnerShopCategory{})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &Service{
		db:      db,
		node:    node,
		entries: repository.ProvideStore[LedgerEntry](db),
		cards:   repository.ProvideStore[RewardCard](db),
	}
}

func requireStatus(t *testing.T, err error, status errutil.CoreStatus) {
	t.Helper()

	require.Error(t, err)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be), "expected BaseError, got %T", err)
	require.Equal(t, status, be.Status())
}

func TestRecordPointsAuthorization(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	in := RecordPointsInput{PatientID: patient.ID, Points: 100, Type: Earned}

	_, err := svc.RecordPoints(ctx, patient, in)
	requireStatus(t, err, errutil.StatusForbidden)

	entry, err := svc.RecordPoints(ctx, clinic, in)
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)

	_, err = svc.RecordPoints(ctx, admin, in)
	require.NoError(t, err)
}

func TestRecordPointsValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []RecordPointsInput{
		{Points: 100, Type: Earned},
		{PatientID: patient.ID, Points: 0, Type: Earned},
		{PatientID: patient.ID, Points: -50, Type: Earned},
		{PatientID: patient.ID, Points: 100, Type: "spent"},
	}

	for _, in := range cases {
		_, err := svc.RecordPoints(ctx, clinic, in)
		requireStatus(t, err, errutil.StatusValidationFailed)
	}
}

func TestBalanceIsOrderIndependent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first := []RecordPointsInput{
		{PatientID: "p-1", Points: 100, Type: Earned},
		{PatientID: "p-1", Points: 30, Type: Redeemed},
		{PatientID: "p-1", Points: 50, Type: Earned},
	}
	second := []RecordPointsInput{
		{PatientID: "p-2", Points: 30, Type: Redeemed},
		{PatientID: "p-2", Points: 50, Type: Earned},
		{PatientID: "p-2", Points: 100, Type: Earned},
	}

	for _, in := range append(first, second...) {
		_, err := svc.RecordPoints(ctx, clinic, in)
		require.NoError(t, err)
	}

	one, err := svc.GetBalance(ctx, admin, "p-1", pagination.Pagination{})
	require.NoError(t, err)
	two, err := svc.GetBalance(ctx, admin, "p-2", pagination.Pagination{})
	require.NoError(t, err)

	require.Equal(t, int64(120), one.TotalPoints)
	require.Equal(t, one.TotalPoints, two.TotalPoints)
	require.Len(t, one.History, 3)
}

func TestBalanceHistoryNewestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, points := range []int64{10, 20, 30} {
		entry := &LedgerEntry{
			ID:        svc.node.Generate().String(),
			PatientID: patient.ID,
			Points:    points,
			Type:      Earned,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, svc.db.Create(entry).Error)
	}

	rewards, err := svc.GetBalance(ctx, patient, patient.ID, pagination.Pagination{})
	require.NoError(t, err)
	require.Equal(t, int64(60), rewards.TotalPoints)
	require.Len(t, rewards.History, 3)
	require.Equal(t, int64(30), rewards.History[0].Points)
	require.Equal(t, int64(10), rewards.History[2].Points)
}

func TestBalanceHistoryPagination(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := &LedgerEntry{
			ID:        svc.node.Generate().String(),
			PatientID: patient.ID,
			Points:    int64(i + 1),
			Type:      Earned,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, svc.db.Create(entry).Error)
	}

	first, err := svc.GetBalance(ctx, patient, patient.ID, pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, int64(15), first.TotalPoints)
	require.Len(t, first.History, 2)
	require.Equal(t, int64(5), first.History[0].Points)
	require.True(t, first.PageInfo.HasMore)
	require.NotEmpty(t, first.PageInfo.NextCursor)

	second, err := svc.GetBalance(ctx, patient, patient.ID, pagination.Pagination{
		Limit:  2,
		Cursor: first.PageInfo.NextCursor,
	})
	require.NoError(t, err)
	require.Equal(t, int64(15), second.TotalPoints)
	require.Len(t, second.History, 2)
	require.Equal(t, int64(3), second.History[0].Points)
	require.True(t, second.PageInfo.HasMore)

	last, err := svc.GetBalance(ctx, patient, patient.ID, pagination.Pagination{
		Limit:  2,
		Cursor: second.PageInfo.NextCursor,
	})
	require.NoError(t, err)
	require.Len(t, last.History, 1)
	require.Equal(t, int64(1), last.History[0].Points)
	require.False(t, last.PageInfo.HasMore)

	_, err = svc.GetBalance(ctx, patient, patient.ID, pagination.Pagination{Cursor: "%%%"})
	requireStatus(t, err, errutil.StatusBadRequest)

	badTime, err := pagination.EncodeCursor(pagination.Cursor{CreatedAt: "yesterday", ID: "1"})
	require.NoError(t, err)
	_, err = svc.GetBalance(ctx, patient, patient.ID, pagination.Pagination{Cursor: badTime})
	requireStatus(t, err, errutil.StatusBadRequest)
}

func TestBalanceHistoryPaginationTiedTimestamps(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	want := map[string]bool{}
	for i := 0; i < 3; i++ {
		entry := &LedgerEntry{
			ID:        svc.node.Generate().String(),
			PatientID: patient.ID,
			Points:    1,
			Type:      Earned,
			CreatedAt: ts,
		}
		require.NoError(t, svc.db.Create(entry).Error)
		want[entry.ID] = true
	}

	// Entries sharing a timestamp must all surface exactly once across pages.
	seen := map[string]bool{}
	page := pagination.Pagination{Limit: 1}
	for i := 0; i < len(want)+1; i++ {
		rewards, err := svc.GetBalance(ctx, patient, patient.ID, page)
		require.NoError(t, err)
		for _, entry := range rewards.History {
			require.False(t, seen[entry.ID], "entry %s returned twice", entry.ID)
			seen[entry.ID] = true
		}
		if !rewards.PageInfo.HasMore {
			break
		}
		page.Cursor = rewards.PageInfo.NextCursor
	}

	require.Equal(t, want, seen)
}

func TestGetBalanceAuthorization(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetBalance(ctx, patient, "someone-else", pagination.Pagination{})
	requireStatus(t, err, errutil.StatusForbidden)

	_, err = svc.GetBalance(ctx, clinic, patient.ID, pagination.Pagination{})
	requireStatus(t, err, errutil.StatusForbidden)

	rewards, err := svc.GetBalance(ctx, admin, patient.ID, pagination.Pagination{})
	require.NoError(t, err)
	require.Equal(t, int64(0), rewards.TotalPoints)
	require.Empty(t, rewards.History)
	require.Nil(t, rewards.Card)
}

func TestRequestCardIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	card, err := svc.RequestCard(ctx, patient)
	require.NoError(t, err)
	require.Regexp(t, cardNumberPattern, card.CardNumber)
	require.Equal(t, CardActive, card.Status)
	require.Equal(t, patient.ID, card.PatientID)

	again, err := svc.RequestCard(ctx, patient)
	require.NoError(t, err)
	require.Equal(t, card.ID, again.ID)
	require.Equal(t, card.CardNumber, again.CardNumber)

	rewards, err := svc.GetBalance(ctx, patient, patient.ID, pagination.Pagination{})
	require.NoError(t, err)
	require.NotNil(t, rewards.Card)
	require.Equal(t, card.CardNumber, rewards.Card.CardNumber)
}

func TestRequestCardOnlyForPatients(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.RequestCard(ctx, clinic)
	requireStatus(t, err, errutil.StatusForbidden)

	_, err = svc.RequestCard(ctx, admin)
	requireStatus(t, err, errutil.StatusForbidden)
}

func TestGenerateCardNumber(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 16; i++ {
		number, err := GenerateCardNumber()
		require.NoError(t, err)
		require.Regexp(t, cardNumberPattern, number)
		require.False(t, seen[number], "generated duplicate card number %s", number)
		seen[number] = true
	}
}

func TestInfoListsPartnerShops(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	shops := []*PartnerShop{
		{
			ID:   "shop-2",
			Name: "Wellness Corner",
			Categories: []PartnerShopCategory{
				{ID: "cat-1", Name: "Supplements"},
			},
		},
		{
			ID:   "shop-1",
			Name: "City Pharmacy",
			Categories: []PartnerShopCategory{
				{ID: "cat-2", Name: "Pharmacy"},
				{ID: "cat-3", Name: "Devices"},
			},
		},
	}
	for _, shop := range shops {
		require.NoError(t, svc.db.Create(shop).Error)
	}

	info, err := svc.Info(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(10), info.EarnRates["products"])
	require.Equal(t, int64(100), info.RedemptionRate)

	require.Len(t, info.PartnerShops, 2)
	require.Equal(t, "City Pharmacy", info.PartnerShops[0].Name)
	require.Len(t, info.PartnerShops[0].Categories, 2)
	require.Equal(t, "Wellness Corner", info.PartnerShops[1].Name)
	require.Len(t, info.PartnerShops[1].Categories, 1)
}
