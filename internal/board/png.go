package board

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-board/internal/rules"
)

var ErrEmptyFrame = errors.New("board frame must have 64 cells")

type MoveHighlight struct {
	From rules.Square
	To   rules.Square
}

type RenderOptions struct {
	SquareSize int
	LastMove   *MoveHighlight
}

// PNGRenderer rasterises a frame to PNG. Pieces come from SVG silhouettes.
type PNGRenderer struct {
	squareSize int
}

func NewPNGRenderer() *PNGRenderer {
	return &PNGRenderer{squareSize: 64}
}

func (r *PNGRenderer) RenderPNG(ctx context.Context, cells []Cell, opts RenderOptions) ([]byte, error) {
	if len(cells) != 64 {
		return nil, ErrEmptyFrame
	}
	squareSize := opts.SquareSize
	if squareSize <= 0 {
		squareSize = r.squareSize
	}
	margin := squareSize / 2
	boardSize := squareSize * 8
	origin := image.Point{X: margin, Y: margin}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, boardSize+margin*2, boardSize+margin*2))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(frameColor), image.Point{}, imagedraw.Src)

	drawSquares(img, cells, squareSize, origin)
	drawLastMove(img, cells, opts.LastMove, squareSize, origin)
	for _, c := range cells {
		if c.Selected {
			drawSquareOverlay(img, c.Square, squareSize, origin, selectedColor)
		}
	}
	if err := drawPieces(img, cells, squareSize, origin); err != nil {
		return nil, err
	}
	drawCoordinates(img, squareSize, origin)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	frameColor          = color.RGBA{28, 31, 46, 255}
	selectedColor       = color.NRGBA{R: 120, G: 200, B: 120, A: 150}
	whiteMoveFill       = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	blackMoveArrow      = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	coordinateTextColor = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
)

func drawSquares(dst *image.RGBA, cells []Cell, squareSize int, origin image.Point) {
	for _, c := range cells {
		clr := lightSquare
		if c.Shade == Dark {
			clr = darkSquare
		}
		imagedraw.Draw(dst, squareRect(c.Square, squareSize, origin), image.NewUniform(clr), image.Point{}, imagedraw.Src)
	}
}

func drawPieces(dst *image.RGBA, cells []Cell, squareSize int, origin image.Point) error {
	for _, c := range cells {
		if c.Piece.IsZero() {
			continue
		}
		pimg, err := renderPieceImage(c.Piece, squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, squareRect(c.Square, squareSize, origin), pimg, image.Point{}, imagedraw.Over)
	}
	return nil
}

// drawLastMove fills both squares for a white move and draws an arrow for a black one.
func drawLastMove(img *image.RGBA, cells []Cell, mv *MoveHighlight, squareSize int, origin image.Point) {
	if mv == nil || !mv.From.Valid() || !mv.To.Valid() {
		return
	}
	mover := rules.NoColor
	for _, c := range cells {
		if c.Square == mv.To && !c.Piece.IsZero() {
			mover = c.Piece.Color
		}
	}
	if mover == rules.Black {
		drawArrow(img, mv.From, mv.To, squareSize, origin, blackMoveArrow)
		return
	}
	drawSquareOverlay(img, mv.From, squareSize, origin, whiteMoveFill)
	drawSquareOverlay(img, mv.To, squareSize, origin, whiteMoveFill)
}

func drawCoordinates(dst *image.RGBA, squareSize int, origin image.Point) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()
	boardEnd := origin.Y + 8*squareSize
	for i := 0; i < 8; i++ {
		center := i*squareSize + squareSize/2
		rank := string(rune('8' - i))
		file := string(rune('a' + i))
		drawCenteredText(drawer, rank, origin.X/2, origin.Y+center+ascent/2)
		drawCenteredText(drawer, file, origin.X+center, boardEnd+(origin.Y+ascent)/2)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func squareRect(sq rules.Square, squareSize int, origin image.Point) image.Rectangle {
	x := origin.X + sq.Col*squareSize
	y := origin.Y + sq.Row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func drawSquareOverlay(img *image.RGBA, sq rules.Square, squareSize int, origin image.Point, clr color.Color) {
	if img == nil || !sq.Valid() {
		return
	}
	imagedraw.Draw(img, squareRect(sq, squareSize, origin), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawArrow(img *image.RGBA, from, to rules.Square, squareSize int, origin image.Point, clr color.Color) {
	if img == nil || from == to {
		return
	}
	sr := squareRect(from, squareSize, origin)
	er := squareRect(to, squareSize, origin)
	sx, sy := float64(sr.Min.X+squareSize/2), float64(sr.Min.Y+squareSize/2)
	ex, ey := float64(er.Min.X+squareSize/2), float64(er.Min.Y+squareSize/2)

	length := math.Hypot(ex-sx, ey-sy)
	if length == 0 {
		return
	}
	dirX, dirY := (ex-sx)/length, (ey-sy)/length
	perpX, perpY := -dirY, dirX

	baseLength := length - float64(squareSize)*0.45
	if baseLength < float64(squareSize)*0.35 {
		baseLength = length * 0.6
	}
	halfWidth := float64(squareSize) * 0.12
	headWidth := float64(squareSize) * 0.32
	bx, by := sx+dirX*baseLength, sy+dirY*baseLength

	fillTriangle(img, pointF{sx - perpX*halfWidth, sy - perpY*halfWidth}, pointF{sx + perpX*halfWidth, sy + perpY*halfWidth}, pointF{bx + perpX*halfWidth, by + perpY*halfWidth}, clr)
	fillTriangle(img, pointF{sx - perpX*halfWidth, sy - perpY*halfWidth}, pointF{bx + perpX*halfWidth, by + perpY*halfWidth}, pointF{bx - perpX*halfWidth, by - perpY*halfWidth}, clr)
	fillTriangle(img, pointF{ex, ey}, pointF{bx - perpX*headWidth/2, by - perpY*headWidth/2}, pointF{bx + perpX*headWidth/2, by + perpY*headWidth/2}, clr)
}

type pointF struct {
	X float64
	Y float64
}

func fillTriangle(img *image.RGBA, a, b, c pointF, clr color.Color) {
	minX := int(math.Floor(math.Min(a.X, math.Min(b.X, c.X))))
	maxX := int(math.Ceil(math.Max(a.X, math.Max(b.X, c.X))))
	minY := int(math.Floor(math.Min(a.Y, math.Min(b.Y, c.Y))))
	maxY := int(math.Ceil(math.Max(a.Y, math.Max(b.Y, c.Y))))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if inTriangle(float64(x)+0.5, float64(y)+0.5, a, b, c) {
				blendPixel(img, x, y, clr)
			}
		}
	}
}

func inTriangle(x, y float64, a, b, c pointF) bool {
	denom := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if denom == 0 {
		return false
	}
	alpha := ((b.Y-c.Y)*(x-c.X) + (c.X-b.X)*(y-c.Y)) / denom
	beta := ((c.Y-a.Y)*(x-c.X) + (a.X-c.X)*(y-c.Y)) / denom
	return alpha >= 0 && beta >= 0 && 1-alpha-beta >= 0
}

// blendPixel composites clr over the destination pixel (source-over, premultiplied output).
func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	srcA := float64(sa) / 65535.0
	dst := img.RGBAAt(x, y)
	inv := 1 - srcA
	img.SetRGBA(x, y, color.RGBA{
		R: clampUint8(float64(sr)/257.0 + float64(dst.R)*inv),
		G: clampUint8(float64(sg)/257.0 + float64(dst.G)*inv),
		B: clampUint8(float64(sb)/257.0 + float64(dst.B)*inv),
		A: clampUint8(srcA*255.0 + float64(dst.A)*inv),
	})
}

func clampUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
