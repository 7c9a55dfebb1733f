package labels

import (
	"bytes"
	"context"
	"image/png"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/testkit"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *memCache) Put(key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	return nil
}

func TestLines(t *testing.T) {
	p := domain.Product{
		Name:    "Extra Large Organic Whole Grain Bread Loaf",
		Barcode: "1234567890125",
		Price:   2.50,
		Cost:    1.50,
	}
	lines := Lines(p)
	assert.Equal(t, "Extra Large Organic Whole G...", lines[0])
	assert.Len(t, []rune(lines[0]), 30)
	assert.Equal(t, "Price: $2.50", lines[1])
	assert.Equal(t, "Profit: $1.00 (66.7%)", lines[2])
	assert.Equal(t, "1234567890125", lines[3])

	p.Name = "Bread"
	p.Cost = 0
	lines = Lines(p)
	assert.Equal(t, "Bread", lines[0])
	assert.Equal(t, "Profit: $2.50 (0.0%)", lines[2])
}

func TestRenderPNG(t *testing.T) {
	r := &Renderer{}
	data, err := r.RenderPNG(domain.Product{Name: "Milk", Barcode: "1234567890126", Price: 3.99, Cost: 2.39})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, Width, img.Bounds().Dx())
	assert.Equal(t, Height, img.Bounds().Dy())

	_, err = r.Render(domain.Product{Name: "Nothing"})
	assert.Error(t, err)
}

func TestRenderBatchSkipsForeignProducts(t *testing.T) {
	db := testkit.NewDB(t)
	b1 := testkit.SeedBusiness(t, db, "Store One")
	b2 := testkit.SeedBusiness(t, db, "Store Two")
	bread := testkit.SeedProduct(t, db, b1.ID, "Bread", "1234567890125", 2.50, 100)
	milk := testkit.SeedProduct(t, db, b1.ID, "Milk", "1234567890126", 3.99, 75)
	foreign := testkit.SeedProduct(t, db, b2.ID, "Coffee", "1234567890127", 12.99, 30)

	cache := newMemCache()
	svc := NewService(db, nil, cache, 2)
	labels, err := svc.RenderBatch(context.Background(), b1.ID, []int64{milk.ID, foreign.ID, 999, bread.ID, milk.ID})
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, milk.ID, labels[0].ProductID)
	assert.Equal(t, bread.ID, labels[1].ProductID)
	for _, l := range labels {
		assert.NotEmpty(t, l.PNG)
	}
	assert.Len(t, cache.data, 2)

	_, err = svc.RenderBatch(context.Background(), b1.ID, []int64{bread.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
}

func TestProductLabelScopedToBusiness(t *testing.T) {
	db := testkit.NewDB(t)
	b1 := testkit.SeedBusiness(t, db, "Store One")
	b2 := testkit.SeedBusiness(t, db, "Store Two")
	bread := testkit.SeedProduct(t, db, b1.ID, "Bread", "1234567890125", 2.50, 100)
	svc := NewService(db, nil, nil, 0)

	l, err := svc.ProductLabel(context.Background(), b1.ID, bread.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bread", l.Name)

	_, err = svc.ProductLabel(context.Background(), b2.ID, bread.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestWritePDF(t *testing.T) {
	r := &Renderer{}
	data, err := r.RenderPNG(domain.Product{ID: 1, Name: "Bread", Barcode: "1234567890125", Price: 2.5, Cost: 1.5})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePDF([]Label{{ProductID: 1, PNG: data}, {ProductID: 1, PNG: data}}, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "%PDF"))
}

func TestBoltCache(t *testing.T) {
	cache, err := OpenBoltCache(filepath.Join(t.TempDir(), "labels.db"))
	require.NoError(t, err)
	defer cache.Close()

	_, ok := cache.Get("1:1")
	assert.False(t, ok)
	require.NoError(t, cache.Put("1:1", []byte("png")))
	v, ok := cache.Get("1:1")
	assert.True(t, ok)
	assert.Equal(t, []byte("png"), v)
}
