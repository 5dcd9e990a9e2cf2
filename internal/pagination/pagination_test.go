package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total int64
		size  int
		want  int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{23, 10, 3},
		{23, 1, 23},
		{5, 0, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.total, tt.size), "total=%d size=%d", tt.total, tt.size)
	}
}

func TestNormalize(t *testing.T) {
	page, size := Normalize(0, 0)
	assert.Equal(t, DefaultPage, page)
	assert.Equal(t, DefaultSize, size)

	page, size = Normalize(3, 25)
	assert.Equal(t, 3, page)
	assert.Equal(t, 25, size)
}

func TestSlice(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}

	t.Run("first page", func(t *testing.T) {
		p := Slice(items, 1, 10)
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, p.Data)
		assert.Equal(t, int64(23), p.Total)
		assert.Equal(t, 3, p.TotalPages)
	})

	t.Run("last partial page", func(t *testing.T) {
		p := Slice(items, 3, 10)
		assert.Equal(t, []int{20, 21, 22}, p.Data)
	})

	t.Run("beyond last page", func(t *testing.T) {
		p := Slice(items, 4, 10)
		assert.Empty(t, p.Data)
		assert.NotNil(t, p.Data)
		assert.Equal(t, int64(23), p.Total)
	})

	t.Run("defaults", func(t *testing.T) {
		p := Slice(items, 0, 0)
		assert.Equal(t, 1, p.Page)
		assert.Equal(t, 10, p.Size)
		assert.Len(t, p.Data, 10)
	})
}

func TestSlice_Properties(t *testing.T) {
	for total := 0; total <= 40; total++ {
		items := make([]int, total)

		for size := 1; size <= 12; size++ {
			pages := TotalPages(int64(total), size)

			for page := 1; page <= pages+1; page++ {
				p := Slice(items, page, size)
				assert.LessOrEqual(t, len(p.Data), size)
				assert.Equal(t, int64(total), p.Total)
				assert.Equal(t, (total+size-1)/size, p.TotalPages)

				if page > pages {
					assert.Empty(t, p.Data)
				}
			}
		}
	}
}
