package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/nfnt/resize"
)

// ErrUndecodable is returned when the input is not an image we can read.
var ErrUndecodable = errors.New("image could not be decoded")

// Layout is the order of values in the produced tensor.
type Layout string

const (
	// NHWC is height, width, channel; what Keras exports expect.
	NHWC Layout = "nhwc"
	// NCHW is channel-planar, as PyTorch exports expect.
	NCHW Layout = "nchw"
)

// ParseLayout accepts "nhwc" or "nchw".
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case NHWC, NCHW:
		return Layout(s), nil
	}
	return "", fmt.Errorf("unknown tensor layout %q", s)
}

// Preprocessor turns images into normalized float32 RGB tensors.
type Preprocessor struct {
	layout Layout
}

// NewPreprocessor returns a preprocessor producing tensors in the given layout.
func NewPreprocessor(layout Layout) *Preprocessor {
	return &Preprocessor{layout: layout}
}

// Load decodes the image at path and returns a size×size×3 tensor with
// values scaled to [0,1].
func (p *Preprocessor) Load(path string, size int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	return p.Decode(f, size)
}

// Decode is Load for an already open stream.
func (p *Preprocessor) Decode(r io.Reader, size int) ([]float32, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid target size %d", size)
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	// Nearest neighbour matches the sampling the model was trained with.
	resized := resize.Resize(uint(size), uint(size), toRGB(img), resize.NearestNeighbor)

	return p.tensor(resized, size), nil
}

// toRGB discards the alpha channel without premultiplying, so transparent
// pixels keep their stored colour.
func toRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return out
}

func (p *Preprocessor) tensor(img image.Image, size int) []float32 {
	bounds := img.Bounds()
	plane := size * size
	data := make([]float32, 3*plane)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			rNorm := float32(r>>8) / 255.0
			gNorm := float32(g>>8) / 255.0
			bNorm := float32(b>>8) / 255.0

			pixel := y*size + x
			if p.layout == NCHW {
				data[pixel] = rNorm
				data[plane+pixel] = gNorm
				data[2*plane+pixel] = bNorm
				continue
			}
			data[3*pixel] = rNorm
			data[3*pixel+1] = gNorm
			data[3*pixel+2] = bNorm
		}
	}

	return data
}
