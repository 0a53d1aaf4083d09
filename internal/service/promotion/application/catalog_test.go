package application

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-promotion/internal/service/promotion/domain"
	"nexus-promotion/internal/service/promotion/infrastructure/fixture"
)

// flakyRepository 在 failFindAll 为 true 时让 FindAll 失败
type flakyRepository struct {
	*fixture.MemoryRepository
	failFindAll bool
	findByShop  int
}

func (r *flakyRepository) FindAll(ctx context.Context) ([]domain.Promotion, error) {
	if r.failFindAll {
		return nil, errors.New("connection refused")
	}
	return r.MemoryRepository.FindAll(ctx)
}

func (r *flakyRepository) FindByShop(ctx context.Context, shopID string) ([]domain.Promotion, error) {
	r.findByShop++
	return r.MemoryRepository.FindByShop(ctx, shopID)
}

func TestCatalog_ReloadFailureKeepsTable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &flakyRepository{MemoryRepository: fixture.NewMemoryRepository()}
	p := thresholdPromotion("p1", "shop-1", 10, domain.StackNone, percentOff(5))
	require.NoError(t, repo.Upsert(ctx, &p))

	catalog := NewCatalog(repo, testActions(t))
	before, err := catalog.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, before.Size())

	repo.failFindAll = true
	_, err = catalog.Reload(ctx)
	require.ErrorContains(t, err, "connection refused")
	assert.Same(t, before, catalog.Table())
}

func TestCatalog_LazyShopLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &flakyRepository{MemoryRepository: fixture.NewMemoryRepository()}
	catalog := NewCatalog(repo, testActions(t))
	_, err := catalog.Reload(ctx)
	require.NoError(t, err)

	// 加载之后才写入的店铺
	p := thresholdPromotion("late", "shop-late", 10, domain.StackNone, percentOff(5))
	require.NoError(t, repo.Upsert(ctx, &p))

	list, err := catalog.Promotions(ctx, "shop-late")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "late", list[0].ID())

	_, err = catalog.Promotions(ctx, "shop-late")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.findByShop, "loaded shops are served from the table")

	_, err = catalog.Promotions(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrShopNotFound)
	_, loaded := catalog.Table().Shop("ghost")
	assert.False(t, loaded)
}

func TestCatalog_AutoReloadDisabled(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog(fixture.NewMemoryRepository(), testActions(t))
	done := make(chan struct{})
	go func() {
		catalog.AutoReload(context.Background(), 0)
		close(done)
	}()
	<-done
}
