// Package sheet implements the contact sheet stage: a grid of thumbnails
// labelled with the timestamp of the frame each one shows.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/pipeline"
	"github.com/user/framecache/pkg/ports"
)

// ErrNoFrames is returned when there is nothing to lay out.
var ErrNoFrames = errors.New("sheet: no frames")

// Layout is the computed geometry of a contact sheet.
type Layout struct {
	Width   int
	Height  int
	Rows    int
	Columns int
	Title   image.Point       // Left edge and vertical center of the title
	Cells   []image.Rectangle // Thumbnail areas, one per frame
	Labels  []image.Point     // Center of each timestamp label
}

// ComputeLayout lays out n thumbnails of a source sized srcW x srcH.
// This is exposed as a standalone function for testing and reuse.
func ComputeLayout(input pipeline.SheetInput, n, srcW, srcH int) Layout {
	cols := input.Columns
	if cols <= 0 {
		cols = 1
	}
	if cols > n {
		cols = n
	}
	rows := (n + cols - 1) / cols

	thumbW := input.ThumbWidth
	thumbH := thumbW
	if srcW > 0 {
		thumbH = srcH * thumbW / srcW
	}

	labelH := int(input.LabelSize * 1.6)
	titleH := 0
	if input.Title != "" {
		titleH = int(input.LabelSize * 2.4)
	}
	rowH := thumbH + labelH

	l := Layout{
		Width:   2*input.Padding + cols*thumbW + (cols-1)*input.Gap,
		Height:  2*input.Padding + titleH + rows*rowH + (rows-1)*input.Gap,
		Rows:    rows,
		Columns: cols,
		Title:   image.Pt(input.Padding, input.Padding+titleH/2),
		Cells:   make([]image.Rectangle, n),
		Labels:  make([]image.Point, n),
	}

	for i := 0; i < n; i++ {
		col, row := i%cols, i/cols
		x := input.Padding + col*(thumbW+input.Gap)
		y := input.Padding + titleH + row*(rowH+input.Gap)
		l.Cells[i] = image.Rect(x, y, x+thumbW, y+thumbH)
		l.Labels[i] = image.Pt(x+thumbW/2, y+thumbH+labelH/2)
	}
	return l
}

// Stage renders contact sheets.
type Stage struct {
	renderer ports.Renderer
	logger   ports.Logger
}

// NewStage creates a new sheet stage.
func NewStage(renderer ports.Renderer, logger ports.Logger) *Stage {
	return &Stage{
		renderer: renderer,
		logger:   logger.WithComponent("sheet"),
	}
}

// Execute draws every frame into a grid.
func (s *Stage) Execute(ctx context.Context, input pipeline.SheetInput) (pipeline.SheetResult, error) {
	if len(input.Frames) == 0 {
		return pipeline.SheetResult{}, ErrNoFrames
	}

	src := input.Frames[0].Image.Bounds()
	layout := ComputeLayout(input, len(input.Frames), src.Dx(), src.Dy())
	s.logger.Debug("Sheet layout: %dx%d, %d rows of %d", layout.Width, layout.Height, layout.Rows, layout.Columns)

	canvas := s.renderer.CreateCanvas(layout.Width, layout.Height, input.Theme.BackgroundColor)

	if input.Title != "" {
		canvas.DrawText(input.Title, layout.Title.X, layout.Title.Y, ports.TextStyle{
			FontSize: input.LabelSize * 1.4,
			Color:    input.Theme.TextColor,
			Align:    ports.AlignLeft,
		})
	}

	label := ports.TextStyle{
		FontSize: input.LabelSize,
		Color:    input.Theme.TextColor,
		Align:    ports.AlignCenter,
	}
	for i, frame := range input.Frames {
		if err := ctx.Err(); err != nil {
			return pipeline.SheetResult{}, err
		}

		cell := layout.Cells[i]
		canvas.DrawImageScaled(frame.Image, cell.Min.X, cell.Min.Y, cell.Dx(), cell.Dy())
		canvas.DrawRectStroke(cell.Min.X, cell.Min.Y, cell.Dx(), cell.Dy(), input.Theme.BorderColor, 1)
		canvas.DrawText(FormatTimestamp(frame.Timestamp), layout.Labels[i].X, layout.Labels[i].Y, label)
	}

	return pipeline.SheetResult{
		Image:   canvas.ToImage(),
		Rows:    layout.Rows,
		Columns: layout.Columns,
	}, nil
}

// FormatTimestamp renders ts as mm:ss.mmm, or h:mm:ss.mmm past an hour.
func FormatTimestamp(ts mediatime.Time) string {
	sign := ""
	if ts < 0 {
		sign = "-"
		ts = -ts
	}
	ms := ts.Milliseconds()
	h := ms / 3600000
	m := ms / 60000 % 60
	sec := ms / 1000 % 60
	ms %= 1000
	if h > 0 {
		return fmt.Sprintf("%s%d:%02d:%02d.%03d", sign, h, m, sec, ms)
	}
	return fmt.Sprintf("%s%02d:%02d.%03d", sign, m, sec, ms)
}
