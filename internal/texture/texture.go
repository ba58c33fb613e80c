// Package texture decodes image files into tightly packed RGBA8 pixel
// buffers ready for upload.
package texture

import (
	"bufio"
	"image"
	"io"
	"math/bits"
	"os"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/draw"
)

// BytesPerPixel is the stride of one RGBA8 texel.
const BytesPerPixel = 4

// Image is a decoded texture: rows top to bottom, texels left to right,
// straight (non-premultiplied) alpha.
type Image struct {
	Width  int
	Height int
	Pixels []byte
}

// Size is the byte length of the pixel buffer.
func (img *Image) Size() int {
	return img.Width * img.Height * BytesPerPixel
}

// MipLevels is the length of the full mip chain of the image.
func (img *Image) MipLevels() int {
	return MipLevels(img.Width, img.Height)
}

// MipLevels returns floor(log2(max(width, height))) + 1.
func MipLevels(width, height int) int {
	largest := width
	if height > largest {
		largest = height
	}
	if largest < 1 {
		return 1
	}
	return bits.Len(uint(largest))
}

// MipExtent returns the size of the next mip level, halving each axis and
// clamping it to 1.
func MipExtent(width, height int) (int, int) {
	if width > 1 {
		width /= 2
	}
	if height > 1 {
		height /= 2
	}
	return width, height
}

// Decode reads any registered image format.
func Decode(r io.Reader) (*Image, error) {
	decoded, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}

	bounds := decoded.Bounds()
	if bounds.Empty() {
		return nil, errors.Newf("%s image has no pixels", format)
	}

	rgba, ok := decoded.(*image.NRGBA)
	if !ok || rgba.Stride != bounds.Dx()*BytesPerPixel || bounds.Min != (image.Point{}) {
		rgba = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), decoded, bounds.Min, draw.Src)
	}

	return &Image{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pixels: rgba.Pix[:bounds.Dx()*bounds.Dy()*BytesPerPixel],
	}, nil
}

// Load decodes the image file at path.
func Load(path string) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open texture")
	}
	defer file.Close()

	img, err := Decode(bufio.NewReader(file))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return img, nil
}
