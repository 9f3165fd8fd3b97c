package omr

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

const overlayColumns = 10

var (
	overlayGrid = color.RGBA{R: 255, A: 128}
	overlayMark = color.RGBA{R: 220, G: 30, B: 30, A: 200}
)

// BuildOverlay renders a review aid next to the stored sheet: the original
// image with a cell grid, one cell per item, and the detected option marked
// inside its cell. Returns the path of the generated PNG.
func BuildOverlay(imagePath string, answers []string) (string, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to open scan image: %w", err)
	}
	defer file.Close()

	src, _, err := image.Decode(file)
	if err != nil {
		return "", fmt.Errorf("failed to decode scan image: %w", err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	rows := (len(answers) + overlayColumns - 1) / overlayColumns
	if rows == 0 {
		rows = 1
	}
	cellW := bounds.Dx() / overlayColumns
	cellH := bounds.Dy() / rows
	if cellW < 1 {
		cellW = 1
	}
	if cellH < 1 {
		cellH = 1
	}

	for idx, answer := range answers {
		col := idx % overlayColumns
		row := idx / overlayColumns
		x0 := bounds.Min.X + col*cellW
		y0 := bounds.Min.Y + row*cellH

		drawRectOutline(canvas, x0, y0, cellW, cellH, overlayGrid)
		if slot := optionSlot(answer); slot >= 0 {
			markCell(canvas, x0, y0, cellW, cellH, slot)
		}
	}

	overlayPath := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".overlay.png"
	out, err := os.Create(overlayPath)
	if err != nil {
		return "", fmt.Errorf("failed to create overlay file: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, canvas); err != nil {
		return "", fmt.Errorf("failed to encode overlay: %w", err)
	}
	return overlayPath, nil
}

// optionSlot maps an option letter to a horizontal sub-cell position, -1 for
// blank or unknown marks.
func optionSlot(answer string) int {
	if len(answer) != 1 {
		return -1
	}
	letter := answer[0]
	if letter < 'A' || letter > 'E' {
		return -1
	}
	return int(letter - 'A')
}

func drawRectOutline(canvas *image.RGBA, x0, y0, w, h int, c color.RGBA) {
	for x := x0; x < x0+w; x++ {
		canvas.Set(x, y0, c)
		canvas.Set(x, y0+h-1, c)
	}
	for y := y0; y < y0+h; y++ {
		canvas.Set(x0, y, c)
		canvas.Set(x0+w-1, y, c)
	}
}

// markCell fills a small square in the sub-cell that corresponds to the
// detected option, the way a checker would circle it by hand.
func markCell(canvas *image.RGBA, x0, y0, w, h, slot int) {
	slotW := w / 5
	if slotW < 1 {
		slotW = 1
	}
	pad := slotW / 4
	for x := x0 + slot*slotW + pad; x < x0+(slot+1)*slotW-pad && x < x0+w; x++ {
		for y := y0 + pad; y < y0+h-pad; y++ {
			canvas.Set(x, y, overlayMark)
		}
	}
}
