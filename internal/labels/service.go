package labels

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jung-kurt/gofpdf"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/talkincode/toughpos/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	defaultWorkers = 4
	MaxBatch       = 200
)

var ErrProductNotFound = errors.New("product not found")

// Label is one rendered label
type Label struct {
	ProductID int64  `json:"product_id,string"`
	Name      string `json:"name"`
	Barcode   string `json:"barcode"`
	PNG       []byte `json:"-"`
}

type Service struct {
	db       *gorm.DB
	renderer *Renderer
	cache    Cache
	workers  int
	group    singleflight.Group
}

// NewService cache may be nil
func NewService(db *gorm.DB, renderer *Renderer, cache Cache, workers int) *Service {
	if renderer == nil {
		renderer = &Renderer{}
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Service{db: db, renderer: renderer, cache: cache, workers: workers}
}

func (s *Service) render(p domain.Product) ([]byte, error) {
	key := CacheKey(p)
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			return data, nil
		}
	}
	// concurrent requests for the same label share one render
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		data, err := s.renderer.RenderPNG(p)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Put(key, data); err != nil {
				zap.L().Warn("label cache put failed", zap.String("namespace", "labels"), zap.Error(err))
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// ProductLabel renders the label of one product of the business
func (s *Service) ProductLabel(ctx context.Context, businessID, productID int64) (*Label, error) {
	var p domain.Product
	err := s.db.WithContext(ctx).Where("id = ? AND business_id = ?", productID, businessID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	data, err := s.render(p)
	if err != nil {
		return nil, err
	}
	return &Label{ProductID: p.ID, Name: p.Name, Barcode: p.Barcode, PNG: data}, nil
}

// RenderBatch renders the labels of the requested products in request order.
// Ids that are not products of the business are skipped.
func (s *Service) RenderBatch(ctx context.Context, businessID int64, ids []int64) ([]Label, error) {
	if len(ids) > MaxBatch {
		return nil, errors.Errorf("at most %d labels per batch", MaxBatch)
	}
	if len(ids) == 0 {
		return []Label{}, nil
	}
	var products []domain.Product
	if err := s.db.WithContext(ctx).Where("business_id = ? AND id IN ?", businessID, ids).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	ordered := make([]domain.Product, 0, len(products))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			ordered = append(ordered, p)
		}
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, errors.Wrap(err, "create render pool")
	}
	defer pool.Release()

	results := make([]Label, len(ordered))
	errs := make([]error, len(ordered))
	var wg sync.WaitGroup
	for i := range ordered {
		i := i
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}
			p := ordered[i]
			data, err := s.render(p)
			if err != nil {
				errs[i] = errors.Wrapf(err, "render %s", p.Name)
				return
			}
			results[i] = Label{ProductID: p.ID, Name: p.Name, Barcode: p.Barcode, PNG: data}
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	zap.L().Info("labels rendered",
		zap.String("namespace", "labels"),
		zap.Int64("business_id", businessID),
		zap.Int("requested", len(ids)),
		zap.Int("rendered", len(results)))
	return results, nil
}

// WritePDF lays the labels out two per row on A4 pages
func WritePDF(labels []Label, w io.Writer) error {
	const (
		margin  = 10.0
		gap     = 5.0
		labelW  = 92.5
		labelH  = labelW * Height / Width
		perRow  = 2
		perPage = 10
	)
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}

	for i, l := range labels {
		if i%perPage == 0 {
			pdf.AddPage()
		}
		slot := i % perPage
		x := margin + float64(slot%perRow)*(labelW+gap)
		y := margin + float64(slot/perRow)*(labelH+gap)
		name := fmt.Sprintf("label-%d-%d", l.ProductID, i)
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(l.PNG))
		pdf.ImageOptions(name, x, y, labelW, labelH, false, opts, 0, "")
	}
	if len(labels) == 0 {
		pdf.AddPage()
	}
	return pdf.Output(w)
}
