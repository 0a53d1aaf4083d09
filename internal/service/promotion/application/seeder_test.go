package application

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-promotion/internal/service/promotion/domain"
	"nexus-promotion/internal/service/promotion/infrastructure/fixture"
)

type fakeLock struct {
	locked, unlocked int
	lockErr          error
}

func (l *fakeLock) Lock(context.Context) error {
	if l.lockErr != nil {
		return l.lockErr
	}
	l.locked++
	return nil
}

func (l *fakeLock) Unlock() error {
	l.unlocked++
	return nil
}

func newTestSeeder(t *testing.T, repo *fixture.MemoryRepository) *Seeder {
	t.Helper()
	s := NewSeeder(repo, repo, testActions(t), testTracer())
	s.now = func() time.Time { return testNow }
	return s
}

func loadShippedFixtures(t *testing.T) []domain.Promotion {
	t.Helper()
	promotions, err := fixture.LoadFile("../../../../configs/fixtures/promotions.yaml")
	require.NoError(t, err)
	return promotions
}

func TestSeeder_Seed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := fixture.NewMemoryRepository(domain.Shop{ID: "shop-main", ShopType: domain.ShopTypePrimary})
	seeder := newTestSeeder(t, repo)
	lock := &fakeLock{}

	report, err := seeder.Seed(ctx, loadShippedFixtures(t), lock)
	require.NoError(t, err)
	assert.Equal(t, &SeedReport{ShopID: "shop-main", Upserted: []string{"orderPromotion"}}, report)
	assert.Equal(t, 1, lock.locked)
	assert.Equal(t, 1, lock.unlocked)

	stored, err := repo.FindByID(ctx, "orderPromotion")
	require.NoError(t, err)
	assert.Equal(t, "shop-main", stored.ShopID)
	assert.Equal(t, testNow, stored.StartDate)

	// 重复执行结果相同
	_, err = seeder.Seed(ctx, loadShippedFixtures(t), nil)
	require.NoError(t, err)
	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSeeder_KeepsExplicitStartDate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := fixture.NewMemoryRepository(domain.Shop{ID: "shop-main", ShopType: domain.ShopTypePrimary})
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	p := thresholdPromotion("p1", "", 100, domain.StackNone, percentOff(5))
	p.StartDate = start

	_, err := newTestSeeder(t, repo).Seed(ctx, []domain.Promotion{p}, nil)
	require.NoError(t, err)
	stored, err := repo.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, start, stored.StartDate)
}

func TestSeeder_NoPrimaryShop(t *testing.T) {
	t.Parallel()

	repo := fixture.NewMemoryRepository(domain.Shop{ID: "branch", ShopType: "secondary"})
	lock := &fakeLock{}

	report, err := newTestSeeder(t, repo).Seed(context.Background(), loadShippedFixtures(t), lock)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Empty(t, report.Upserted)
	assert.Zero(t, lock.locked)

	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSeeder_RejectsBeforeWriting(t *testing.T) {
	t.Parallel()

	good := thresholdPromotion("good", "", 100, domain.StackNone, percentOff(5))
	noLabel := thresholdPromotion("no-label", "", 100, domain.StackNone, percentOff(5))
	noLabel.Label = ""
	badRule := thresholdPromotion("bad-rule", "", 100, domain.StackNone, percentOff(5))
	badRule.OfferRule.Conditions = &domain.Condition{Any: []*domain.Condition{{Fact: "cart", Operator: "between", Value: 1}}}

	tests := []struct {
		name     string
		fixtures []domain.Promotion
	}{
		{name: "structural problem", fixtures: []domain.Promotion{good, noLabel}},
		{name: "offer rule does not compile", fixtures: []domain.Promotion{good, badRule}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := fixture.NewMemoryRepository(domain.Shop{ID: "shop-main", ShopType: domain.ShopTypePrimary})
			_, err := newTestSeeder(t, repo).Seed(context.Background(), tt.fixtures, &fakeLock{})
			assert.ErrorIs(t, err, domain.ErrInvalidPromotion)

			all, err := repo.FindAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all, "nothing is written when any fixture is invalid")
		})
	}
}

func TestSeeder_LockFailure(t *testing.T) {
	t.Parallel()

	repo := fixture.NewMemoryRepository(domain.Shop{ID: "shop-main", ShopType: domain.ShopTypePrimary})
	_, err := newTestSeeder(t, repo).Seed(context.Background(), loadShippedFixtures(t), &fakeLock{lockErr: errors.New("lock timeout")})
	assert.ErrorContains(t, err, "lock timeout")
}
