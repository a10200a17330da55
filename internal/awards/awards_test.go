package awards

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarium/catalog-cli/internal/model"
)

type memAwards struct {
	seen map[string]bool
	rows []model.Award
}

func (m *memAwards) UpsertAward(_ context.Context, a *model.Award) (bool, error) {
	key := a.ProductID + "|" + a.Competition + "|" + string(rune(a.Year)) + "|" + a.Medal
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	m.rows = append(m.rows, *a)
	return true, nil
}

func (m *memAwards) ListAwards(_ context.Context, productID string) ([]model.Award, error) {
	var out []model.Award
	for _, a := range m.rows {
		if a.ProductID == productID {
			out = append(out, a)
		}
	}
	return out, nil
}

func TestNormalizeCompetition(t *testing.T) {
	cases := map[string]string{
		"IWSC": "iwsc",
		"International Wine & Spirit Competition":  "iwsc",
		"San Francisco World Spirits Competition":  "sfwsc",
		"World Whiskies Awards":                    "wwa",
		"Decanter World Wine Awards":               "dwwa",
		"IWSC 2024 results":                        "iwsc",
		"Some Local Tasting":                       "some_local_tasting",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCompetition(in), "input %q", in)
	}
}

func TestNormalizeMedal(t *testing.T) {
	cases := map[string]string{
		"Gold":              "gold",
		"DOUBLE GOLD":       "double_gold",
		"Double-Gold Medal": "double_gold",
		"Silver Outstanding": "silver",
		"Best in Class":     "best_in_class",
		"Best in Show":      "best_in_show",
		"Platinum":          "platinum",
		"Trophy Winner":     "trophy",
		"Commended":         "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeMedal(in), "input %q", in)
	}
}

func TestAttach_NormalizesBeforeDedup(t *testing.T) {
	st := &memAwards{}
	h := NewHandler(st)

	first, err := h.Attach(context.Background(), "p1", model.AwardRecord{
		Competition: "International Wine & Spirit Competition",
		Year:        2024,
		Medal:       "Gold Medal",
	})
	require.NoError(t, err)
	assert.True(t, first)

	// same award, different surface forms
	second, err := h.Attach(context.Background(), "p1", model.AwardRecord{
		Competition: "IWSC",
		Year:        2024,
		Medal:       "GOLD",
	})
	require.NoError(t, err)
	assert.False(t, second)

	rows, err := st.ListAwards(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "iwsc", rows[0].Competition)
	assert.Equal(t, "gold", rows[0].Medal)
}

func TestAttach_DropsUnrecognizableMedal(t *testing.T) {
	st := &memAwards{}
	h := NewHandler(st)

	inserted, err := h.Attach(context.Background(), "p1", model.AwardRecord{
		Competition: "IWSC", Year: 2024, Medal: "Honourable Mention",
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Empty(t, st.rows)
}

func TestAttachAll_CountsNewOnly(t *testing.T) {
	st := &memAwards{}
	h := NewHandler(st)

	added, err := h.AttachAll(context.Background(), "p1", []model.AwardRecord{
		{Competition: "IWSC", Year: 2024, Medal: "Gold"},
		{Competition: "iwsc", Year: 2024, Medal: "gold"},
		{Competition: "SFWSC", Year: 2024, Medal: "Double Gold"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)
}
