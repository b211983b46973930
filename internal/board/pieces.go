package board

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/cheese-board/internal/rules"
)

// Silhouettes on a 45x45 canvas. FILL and STROKE are substituted per side.
var pieceShapes = map[rules.PieceType]string{
	rules.Pawn: `<circle cx="22.5" cy="14" r="5.5"/>
<path d="M 16,36 L 29,36 L 26.5,25 Q 22.5,21 18.5,25 Z"/>
<rect x="11" y="35" width="23" height="5"/>`,
	rules.Rook:   `<path d="M 11,39 L 34,39 L 34,35 L 31,35 L 29,17 L 32,17 L 32,9 L 28,9 L 28,12 L 25,12 L 25,9 L 20,9 L 20,12 L 17,12 L 17,9 L 13,9 L 13,17 L 16,17 L 14,35 L 11,35 Z"/>`,
	rules.Knight: `<path d="M 12,39 L 34,39 L 33,34 L 30,30 L 31,20 Q 29,10 20,9 L 18,6 L 16,10 L 11,16 L 10,21 L 13,23 L 18,19 L 20,22 L 14,30 L 12,34 Z"/>`,
	rules.Bishop: `<circle cx="22.5" cy="8" r="2.5"/>
<path d="M 22.5,10.5 Q 14,18 16,28 L 29,28 Q 31,18 22.5,10.5 Z"/>
<path d="M 17,28 L 28,28 L 30,35 L 15,35 Z"/>
<rect x="10" y="35" width="25" height="4"/>`,
	rules.Queen: `<path d="M 9,26 L 12,13 L 17,23 L 22.5,10 L 28,23 L 33,13 L 36,26 L 32,35 L 13,35 Z"/>
<circle cx="12" cy="12" r="2"/>
<circle cx="22.5" cy="9" r="2"/>
<circle cx="33" cy="12" r="2"/>
<rect x="11" y="35" width="23" height="4"/>`,
	rules.King: `<path d="M 21,4 L 24,4 L 24,7 L 27,7 L 27,10 L 24,10 L 24,14 L 21,14 L 21,10 L 18,10 L 18,7 L 21,7 Z"/>
<path d="M 11,34 Q 6,22 15,18 Q 22.5,14 30,18 Q 39,22 34,34 Z"/>
<rect x="11" y="34" width="23" height="5"/>`,
}

type pieceCacheKey struct {
	piece rules.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceSVG(p rules.Piece) ([]byte, error) {
	shape, ok := pieceShapes[p.Type]
	if !ok {
		return nil, fmt.Errorf("no shape for piece %s", p.Type)
	}
	fill, stroke := "#ffffff", "#000000"
	if p.Color == rules.Black {
		fill, stroke = "#1c1c1c", "#f0f0f0"
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	b.WriteString(`<g style="fill: ` + fill + `; stroke: ` + stroke + `; stroke-width:1.5; stroke-linejoin:round">`)
	b.WriteString(shape)
	b.WriteString(`</g></svg>`)
	return []byte(b.String()), nil
}

func renderPieceImage(p rules.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: p, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	data, err := pieceSVG(p)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(sanitizeSVG(data)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
