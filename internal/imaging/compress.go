// Package imaging re-encodes captures and uploads to fit provider payload
// budgets. Compression never fails: when even the harshest rung cannot meet
// the budget, the smallest encoding produced is returned and the caller
// decides whether that is acceptable.
package imaging

import (
	"bytes"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Rung is one step of a compression ladder: a JPEG quality paired with a
// maximum pixel width the image is downscaled to.
type Rung struct {
	Quality  int
	MaxWidth int
}

// GentleLadder is for our own screenshots: already JPEG at a known quality,
// so shaving starts light.
var GentleLadder = []Rung{
	{Quality: 85, MaxWidth: 1920},
	{Quality: 75, MaxWidth: 1600},
	{Quality: 65, MaxWidth: 1280},
	{Quality: 50, MaxWidth: 1024},
	{Quality: 40, MaxWidth: 800},
}

// SteepLadder is for user uploads, which arrive at arbitrary sizes and
// formats and must fit a much tighter budget.
var SteepLadder = []Rung{
	{Quality: 75, MaxWidth: 1280},
	{Quality: 60, MaxWidth: 1024},
	{Quality: 45, MaxWidth: 800},
	{Quality: 30, MaxWidth: 640},
}

// Compressor walks a ladder until the image fits the byte budget.
type Compressor struct {
	logger *zap.Logger
}

func NewCompressor(logger *zap.Logger) *Compressor {
	return &Compressor{logger: logger}
}

// Fit returns data re-encoded to at most budget bytes if any rung can get
// there, otherwise the smallest encoding produced. Data already within
// budget is returned byte-identical, so fitting twice is a no-op. The
// returned bytes are always JPEG unless the input passed through untouched.
func (c *Compressor) Fit(data []byte, budget int, ladder []Rung) []byte {
	if len(data) <= budget {
		return data
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		c.logger.Warn("image not decodable, returning as-is",
			zap.Int("size", len(data)), zap.Error(err))
		return data
	}

	smallest := data
	for _, rung := range ladder {
		encoded, err := encodeRung(src, rung)
		if err != nil {
			c.logger.Warn("compression rung failed",
				zap.Int("quality", rung.Quality), zap.Int("max_width", rung.MaxWidth), zap.Error(err))
			continue
		}
		if len(encoded) < len(smallest) {
			smallest = encoded
		}
		if len(encoded) <= budget {
			return encoded
		}
	}

	c.logger.Warn("compression ladder exhausted",
		zap.Int("original", len(data)),
		zap.Int("smallest", len(smallest)),
		zap.Int("budget", budget))
	return smallest
}

func encodeRung(src image.Image, rung Rung) ([]byte, error) {
	img := src
	bounds := src.Bounds()
	if bounds.Dx() > rung.MaxWidth {
		scale := float64(rung.MaxWidth) / float64(bounds.Dx())
		height := int(float64(bounds.Dy()) * scale)
		if height < 1 {
			height = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, rung.MaxWidth, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: rung.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
