package rewards

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caremarket-rewards/pkg/db/option"
	"caremarket-rewards/pkg/db/pagination"
	"caremarket-rewards/pkg/errutil"
	"caremarket-rewards/pkg/identity"
	"caremarket-rewards/pkg/repository"
)

const maxCardNumberAttempts = 5

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	entries repository.Repository[LedgerEntry]
	cards   repository.Repository[RewardCard]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		entries: repository.ProvideStore[LedgerEntry](p.DB),
		cards:   repository.ProvideStore[RewardCard](p.DB),
	}
}

type RecordPointsInput struct {
	PatientID   string    `json:"patient_id" binding:"required"`
	Points      int64     `json:"points" binding:"required"`
	Description string    `json:"description"`
	SourceID    string    `json:"source_id"`
	Type        EntryType `json:"type" binding:"required"`
}

// RecordPoints appends one immutable ledger entry. The caller (an order or
// appointment confirmation flow) has already validated the source event, so
// this never rejects on business grounds. Redeemed entries are not checked
// against the available balance; that policy is unresolved upstream.
func (s *Service) RecordPoints(ctx context.Context, ident identity.Identity, in RecordPointsInput) (*LedgerEntry, error) {
	if !ident.IsClinic() && !ident.IsAdmin() {
		return nil, errutil.Forbidden("only clinics can add reward points", nil)
	}

	if in.PatientID == "" {
		return nil, errutil.ValidationFailed("patient_id is required", nil)
	}
	if in.Points <= 0 {
		return nil, errutil.ValidationFailed("points must be a positive integer", nil)
	}
	if !in.Type.Valid() {
		return nil, errutil.ValidationFailed("type must be earned or redeemed", nil)
	}

	span := trace.SpanFromContext(ctx)
	fields := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("patient_id", in.PatientID),
		zap.String("type", string(in.Type)),
		zap.Int64("points", in.Points),
	}

	entry := &LedgerEntry{
		ID:          s.node.Generate().String(),
		PatientID:   in.PatientID,
		Points:      in.Points,
		Description: in.Description,
		SourceID:    in.SourceID,
		Type:        in.Type,
		CreatedAt:   time.Now(),
	}

	if err := s.entries.Create(ctx, entry); err != nil {
		zap.L().With(fields...).Error("failed to record points", zap.Error(err))
		return nil, err
	}

	zap.L().With(fields...).Info("points recorded")

	return entry, nil
}

type PatientRewards struct {
	TotalPoints int64                `json:"total_points"`
	History     []*LedgerEntry       `json:"history"`
	PageInfo    *pagination.PageInfo `json:"page_info,omitempty"`
	Card        *RewardCard          `json:"card,omitempty"`
}

// GetBalance derives the balance from the patient's full ledger: earned minus
// redeemed. History comes back newest-first, cursor-paginated; the total
// always covers every entry regardless of the page.
func (s *Service) GetBalance(ctx context.Context, ident identity.Identity, patientID string, page pagination.Pagination) (*PatientRewards, error) {
	if ident.ID != patientID && !ident.IsAdmin() {
		return nil, errutil.Forbidden("not authorized to view these rewards", nil)
	}

	total, err := s.balanceOf(ctx, patientID)
	if err != nil {
		return nil, err
	}

	limit := page.Limit
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow: map[string]bool{
				"created_at": true,
			},
		}),
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "id",
			OrderBy: "desc",
			Allow: map[string]bool{
				"id": true,
			},
		}),
		option.WithLimit(limit + 1),
	}

	if page.Cursor != "" {
		cursor, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, errutil.BadRequest("invalid cursor", err)
		}
		before, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, errutil.BadRequest("invalid cursor", err)
		}
		opts = append(opts, option.WithKeysetBefore(option.Keyset{
			Column:    "created_at",
			TieColumn: "id",
			Value:     before,
			TieValue:  cursor.ID,
		}))
	}

	history, err := s.entries.Find(ctx, &LedgerEntry{PatientID: patientID}, opts...)
	if err != nil {
		return nil, err
	}

	history, pageInfo := pagination.BuildCursorPage(history, limit, func(e *LedgerEntry) pagination.Cursor {
		return pagination.Cursor{
			CreatedAt: e.CreatedAt.Format(time.RFC3339Nano),
			ID:        e.ID,
		}
	})

	card, err := s.cards.FindOne(ctx, &RewardCard{PatientID: patientID})
	if err != nil {
		return nil, err
	}

	return &PatientRewards{
		TotalPoints: total,
		History:     history,
		PageInfo:    pageInfo,
		Card:        card,
	}, nil
}

func (s *Service) balanceOf(ctx context.Context, patientID string) (int64, error) {
	var sums []struct {
		Type  EntryType
		Total int64
	}
	if err := s.db.WithContext(ctx).Model(&LedgerEntry{}).
		Select("type, SUM(points) AS total").
		Where("patient_id = ?", patientID).
		Group("type").
		Scan(&sums).Error; err != nil {
		return 0, err
	}

	var total int64
	for _, sum := range sums {
		switch sum.Type {
		case Earned:
			total += sum.Total
		case Redeemed:
			total -= sum.Total
		}
	}

	return total, nil
}

// RequestCard issues the patient's reward card, or returns the existing one
// unchanged. Card numbers are random, so issuance retries against the unique
// index on collision.
func (s *Service) RequestCard(ctx context.Context, ident identity.Identity) (*RewardCard, error) {
	if !ident.IsPatient() {
		return nil, errutil.Forbidden("only patients can request rewards cards", nil)
	}

	existing, err := s.cards.FindOne(ctx, &RewardCard{PatientID: ident.ID})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	for attempt := 0; attempt < maxCardNumberAttempts; attempt++ {
		number, err := GenerateCardNumber()
		if err != nil {
			return nil, errutil.Internal("failed to generate card number", err)
		}

		taken, err := s.cards.FindOne(ctx, &RewardCard{CardNumber: number})
		if err != nil {
			return nil, err
		}
		if taken != nil {
			continue
		}

		now := time.Now()
		card := &RewardCard{
			ID:         s.node.Generate().String(),
			PatientID:  ident.ID,
			CardNumber: number,
			IssuedDate: now.Format("2006-01-02"),
			Status:     CardActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := s.cards.Create(ctx, card); err != nil {
			// A concurrent request may have won either unique index; return
			// the patient's card if it now exists, otherwise retry.
			existing, findErr := s.cards.FindOne(ctx, &RewardCard{PatientID: ident.ID})
			if findErr == nil && existing != nil {
				return existing, nil
			}
			zap.L().Warn("card insert collided, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		return card, nil
	}

	return nil, errutil.Internal("could not issue a unique card number", nil)
}

type RewardsInfo struct {
	EarnRates      map[string]int64 `json:"earn_rates"`
	RedemptionRate int64            `json:"redemption_rate"`
	PartnerShops   []*PartnerShop   `json:"partner_shops"`
}

// Info returns the public program overview: flat earn rates plus the partner
// shops where points can be redeemed.
func (s *Service) Info(ctx context.Context) (*RewardsInfo, error) {
	shops, err := s.ListPartnerShops(ctx)
	if err != nil {
		return nil, err
	}

	return &RewardsInfo{
		EarnRates: map[string]int64{
			"products": 10,
			"services": 5,
			"referral": 500,
		},
		RedemptionRate: 100,
		PartnerShops:   shops,
	}, nil
}

func (s *Service) ListPartnerShops(ctx context.Context) ([]*PartnerShop, error) {
	var shops []*PartnerShop
	if err := s.db.WithContext(ctx).
		Preload("Categories").
		Order("name ASC").
		Find(&shops).Error; err != nil {
		return nil, err
	}
	return shops, nil
}
