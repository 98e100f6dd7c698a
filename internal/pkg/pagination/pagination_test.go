package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		query      string
		max        int
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"", MaxLimit, 1, DefaultLimit, 0},
		{"?page=3&limit=10", MaxLimit, 3, 10, 20},
		{"?page=0&limit=-5", MaxLimit, 1, DefaultLimit, 0},
		{"?page=two&limit=ten", MaxLimit, 1, DefaultLimit, 0},
		{"?limit=100000", MaxLimit, 1, MaxLimit, 0},
		{"?limit=100000", MaxEventLimit, 1, MaxEventLimit, 0},
		{"?page=2&limit=500", MaxEventLimit, 2, 500, 500},
	}

	for _, tt := range tests {
		app := fiber.New()
		var got *Params
		app.Get("/", func(c *fiber.Ctx) error {
			got = ParseQuery(c, tt.max)
			return nil
		})
		_, err := app.Test(httptest.NewRequest("GET", "/"+tt.query, nil))
		require.NoError(t, err)
		assert.Equal(t, tt.wantPage, got.Page, tt.query)
		assert.Equal(t, tt.wantLimit, got.Limit, tt.query)
		assert.Equal(t, tt.wantOffset, got.Offset, tt.query)
	}
}

func TestNewClampsOffset(t *testing.T) {
	p := New(1<<40, MaxLimit, MaxLimit)
	assert.LessOrEqual(t, p.Offset, maxOffset)
	assert.Equal(t, (p.Page-1)*p.Limit, p.Offset)
}

func TestGetMeta(t *testing.T) {
	meta := GetMeta(&Params{Page: 2, Limit: 10}, 25)
	assert.EqualValues(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)

	meta = GetMeta(&Params{Page: 1, Limit: 10}, 0)
	assert.Zero(t, meta.TotalPages)
	assert.False(t, meta.HasNext)
	assert.False(t, meta.HasPrev)
}
