package chess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	squareSize   = 64
	boardPixels  = squareSize * 8
	boardMargin  = 28
	footerHeight = 48
)

type MoveHighlight struct {
	From nchess.Square
	To   nchess.Square
}

type RenderOptions struct {
	Highlight *MoveHighlight
	Check     *nchess.Square
	Status    string
	Captured  CapturedPieces
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error)
}

type svgBoardRenderer struct{}

func NewSVGBoardRenderer() BoardRenderer {
	return &svgBoardRenderer{}
}

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	backgroundColor = color.RGBA{28, 31, 46, 255}
	lastMoveFill    = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	checkFill       = color.NRGBA{R: 230, G: 40, B: 40, A: 150}
	coordinateColor = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
	statusColor     = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
)

var (
	captionOnce sync.Once
	captionFace font.Face
)

// faceForCaptions parses the bundled Go Bold font once; basicfont is the fallback.
func faceForCaptions() font.Face {
	captionOnce.Do(func() {
		captionFace = basicfont.Face7x13
		f, err := opentype.Parse(gobold.TTF)
		if err != nil {
			return
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: 14, DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			return
		}
		captionFace = face
	})
	return captionFace
}

func (r *svgBoardRenderer) RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}

	width := boardPixels + boardMargin*2
	height := boardPixels + boardMargin*2 + footerHeight
	origin := image.Point{X: boardMargin, Y: boardMargin}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawSquares(img, origin)
	if opts.Highlight != nil {
		drawSquareOverlay(img, opts.Highlight.From, origin, lastMoveFill)
		drawSquareOverlay(img, opts.Highlight.To, origin, lastMoveFill)
	}
	if opts.Check != nil {
		drawSquareOverlay(img, *opts.Check, origin, checkFill)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := drawPieces(img, board, origin); err != nil {
		return nil, err
	}

	face := faceForCaptions()
	drawCoordinates(img, face, origin)
	drawFooter(img, face, opts, image.Rect(boardMargin, boardMargin*2+boardPixels, width-boardMargin, height))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func squareRect(sq nchess.Square, origin image.Point) image.Rectangle {
	c := coordOf(sq)
	x := origin.X + c.Col*squareSize
	y := origin.Y + c.Row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func drawSquares(dst imagedraw.Image, origin image.Point) {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			sq := Coord{Row: row, Col: col}.square()
			clr := lightSquare
			if (int(sq.File())+int(sq.Rank()))%2 == 0 {
				clr = darkSquare
			}
			imagedraw.Draw(dst, squareRect(sq, origin), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawSquareOverlay(dst imagedraw.Image, sq nchess.Square, origin image.Point, clr color.Color) {
	imagedraw.Draw(dst, squareRect(sq, origin), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawPieces(dst imagedraw.Image, board *nchess.Board, origin image.Point) error {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			sq := Coord{Row: row, Col: col}.square()
			piece := board.Piece(sq)
			if piece == nchess.NoPiece {
				continue
			}
			pieceImg, err := renderPieceImage(piece, squareSize)
			if err != nil {
				return err
			}
			imagedraw.Draw(dst, squareRect(sq, origin), pieceImg, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

func drawCoordinates(dst imagedraw.Image, face font.Face, origin image.Point) {
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateColor)}
	ascent := face.Metrics().Ascent.Ceil()
	for i := 0; i < 8; i++ {
		rankLabel := string(rune('8' - i))
		fileLabel := string(rune('a' + i))

		centerY := origin.Y + i*squareSize + squareSize/2
		drawCenteredText(drawer, rankLabel, origin.X-boardMargin/2, centerY+ascent/2)

		centerX := origin.X + i*squareSize + squareSize/2
		drawCenteredText(drawer, fileLabel, centerX, origin.Y+boardPixels+boardMargin/2+ascent/2)
	}
}

func drawFooter(dst imagedraw.Image, face font.Face, opts RenderOptions, rect image.Rectangle) {
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(statusColor)}
	status := strings.TrimSpace(opts.Status)
	if status == "" {
		status = "White to move"
	}
	lineHeight := face.Metrics().Height.Ceil()
	drawer.Dot = fixed.P(rect.Min.X, rect.Min.Y+lineHeight)
	drawer.DrawString(status)

	captured := fmt.Sprintf("White took: %s   Black took: %s",
		joinOrDash(opts.Captured.White), joinOrDash(opts.Captured.Black))
	drawer.Src = image.NewUniform(coordinateColor)
	drawer.Dot = fixed.P(rect.Min.X, rect.Min.Y+lineHeight*2+4)
	drawer.DrawString(captured)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, " ")
}
