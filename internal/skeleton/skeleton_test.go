package skeleton

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarium/catalog-cli/internal/awards"
	"github.com/cellarium/catalog-cli/internal/model"
)

type memStore struct {
	products []*model.Product
	awarded  map[string]int
	nextID   int
}

func newMemStore() *memStore {
	return &memStore{awarded: map[string]int{}}
}

func (m *memStore) CreateProduct(_ context.Context, p *model.Product) error {
	m.nextID++
	p.ID = "p" + string(rune('0'+m.nextID))
	m.products = append(m.products, p)
	return nil
}

func (m *memStore) UpdateProduct(_ context.Context, _ *model.Product) error { return nil }

func (m *memStore) GetProductByFingerprint(_ context.Context, fp string) (*model.Product, error) {
	for _, p := range m.products {
		if p.Fingerprint == fp {
			return p, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindProductsByName(_ context.Context, sub string, typ model.ProductType) ([]model.Product, error) {
	var out []model.Product
	for _, p := range m.products {
		if p.ProductType == typ && strings.Contains(strings.ToLower(p.Name), sub) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) UpsertAward(_ context.Context, a *model.Award) (bool, error) {
	key := a.ProductID + "|" + a.Competition + "|" + a.Medal
	m.awarded[key]++
	return m.awarded[key] == 1, nil
}

func (m *memStore) ListAwards(_ context.Context, _ string) ([]model.Award, error) { return nil, nil }

func newManager(st *memStore) *Manager {
	return NewManager(st, awards.NewHandler(st))
}

func TestDetectProductType(t *testing.T) {
	typ, err := DetectProductType("Glenfiddich 18 Year Old", "Single Malt Scotch Whisky")
	require.NoError(t, err)
	assert.Equal(t, model.TypeWhiskey, typ)

	typ, err = DetectProductType("Graham's 20 Year Old Tawny", "Fortified Wine")
	require.NoError(t, err)
	assert.Equal(t, model.TypePortWine, typ)

	_, err = DetectProductType("Hendrick's Original", "Gin")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestRejected_PortExceptionForWineTag(t *testing.T) {
	assert.False(t, Rejected("Graham's 20 Year Old Tawny Port", "wine"))
	assert.True(t, Rejected("Botanical Dream", "gin"))
	assert.True(t, Rejected("XO Reserve", "cognac"))
	assert.False(t, Rejected("Lagavulin 16", "whisky"))
}

func TestCreateSkeleton_NewProduct(t *testing.T) {
	st := newMemStore()
	m := newManager(st)

	p, created, err := m.CreateSkeleton(context.Background(), model.AwardRecord{
		ProductName: "Glenfiddich 18 Year Old",
		Competition: "IWSC",
		Year:        2024,
		Medal:       "Gold",
		Category:    "Single Malt Scotch Whisky",
		Producer:    "Glenfiddich",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.StatusSkeleton, p.Status)
	assert.Empty(t, p.SourceURL)
	assert.Equal(t, 1, p.AwardCount)
	assert.Contains(t, p.DiscoverySources, "competition")
	assert.Contains(t, p.DiscoverySources, "iwsc")
	assert.Equal(t, model.SkeletonFingerprint("Glenfiddich 18 Year Old", "Glenfiddich"), p.Fingerprint)
}

func TestCreateSkeleton_MergesByFingerprint(t *testing.T) {
	st := newMemStore()
	m := newManager(st)

	rec := model.AwardRecord{
		ProductName: "Glenfiddich 18 Year Old",
		Competition: "IWSC",
		Year:        2024,
		Medal:       "Gold",
		Category:    "Whisky",
		Producer:    "Glenfiddich",
	}
	first, created, err := m.CreateSkeleton(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, created)

	// same product from another competition
	rec2 := rec
	rec2.Competition = "World Whiskies Awards"
	rec2.Medal = "Best in Class"
	second, created, err := m.CreateSkeleton(context.Background(), rec2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.AwardCount)
	assert.Contains(t, second.DiscoverySources, "competition")
	assert.Contains(t, second.DiscoverySources, "iwsc")
	assert.Contains(t, second.DiscoverySources, "wwa")
	assert.Len(t, st.products, 1)
}

func TestCreateSkeleton_MergesByNameSubstring(t *testing.T) {
	st := newMemStore()
	existing := &model.Product{
		ProductType: model.TypeWhiskey,
		Name:        "Lagavulin 16 Year Old",
		Status:      model.StatusVerified,
		Fingerprint: model.Fingerprint("Lagavulin 16 Year Old", "Lagavulin"),
	}
	require.NoError(t, st.CreateProduct(context.Background(), existing))

	m := newManager(st)
	p, created, err := m.CreateSkeleton(context.Background(), model.AwardRecord{
		ProductName: "Lagavulin 16 Year Old",
		Competition: "SFWSC",
		Year:        2023,
		Medal:       "Double Gold",
		Category:    "Whisky",
		Producer:    "Different Producer Ltd",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, p.ID)
	assert.Len(t, st.products, 1)
}

func TestCreateSkeleton_DuplicateAwardNotDoubleCounted(t *testing.T) {
	st := newMemStore()
	m := newManager(st)

	rec := model.AwardRecord{
		ProductName: "Taylor's LBV 2019", Competition: "DWWA", Year: 2024,
		Medal: "Silver", Category: "Port",
	}
	p, _, err := m.CreateSkeleton(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 1, p.AwardCount)

	p2, _, err := m.CreateSkeleton(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 1, p2.AwardCount)
}

func TestCreateSkeleton_UnsupportedCategory(t *testing.T) {
	m := newManager(newMemStore())
	_, _, err := m.CreateSkeleton(context.Background(), model.AwardRecord{
		ProductName: "Silver Needle", Competition: "IWSC", Year: 2024,
		Medal: "Gold", Category: "Vodka",
	})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
