// Package labels renders printable barcode labels for products.
package labels

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/common"
)

const (
	Width  = 640
	Height = 360

	barcodeWidth  = 600
	barcodeHeight = 140
	barcodeTop    = 15

	maxNameRunes = 30
)

// line offsets below the barcode
var lineY = [4]float64{190, 235, 275, 320}

// Renderer composes label images. The zero value uses the built-in font.
type Renderer struct {
	FontPath string
	FontSize float64
}

// Lines the four text lines printed under the barcode
func Lines(p domain.Product) [4]string {
	return [4]string{
		common.Truncate(p.Name, maxNameRunes),
		fmt.Sprintf("Price: $%.2f", p.Price),
		fmt.Sprintf("Profit: $%.2f (%.1f%%)", p.Profit(), p.Margin()),
		p.Barcode,
	}
}

// Render draws the label of p
func (r *Renderer) Render(p domain.Product) (image.Image, error) {
	if p.Barcode == "" {
		return nil, errors.New("product has no barcode")
	}
	code, err := code128.Encode(p.Barcode)
	if err != nil {
		return nil, errors.Wrapf(err, "encode barcode %q", p.Barcode)
	}
	scaled, err := barcode.Scale(code, barcodeWidth, barcodeHeight)
	if err != nil {
		return nil, errors.Wrap(err, "scale barcode")
	}

	dc := gg.NewContext(Width, Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.DrawImage(scaled, (Width-barcodeWidth)/2, barcodeTop)

	if r.FontPath != "" {
		size := r.FontSize
		if size <= 0 {
			size = 18
		}
		if err := dc.LoadFontFace(r.FontPath, size); err != nil {
			return nil, errors.Wrap(err, "load label font")
		}
	}
	dc.SetRGB(0, 0, 0)
	for i, text := range Lines(p) {
		dc.DrawStringAnchored(text, Width/2, lineY[i], 0.5, 0.5)
	}
	return dc.Image(), nil
}

// RenderPNG renders p and encodes it as PNG
func (r *Renderer) RenderPNG(p domain.Product) ([]byte, error) {
	img, err := r.Render(p)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}
