package data

import "math/rand"

// Augmentation configures the random transforms applied to training
// examples. The zero value applies none.
type Augmentation struct {
	HorizontalFlip bool `yaml:"horizontal_flip"` // Mirror left-right with probability 1/2
	CropPadding    int  `yaml:"crop_padding"`    // Zero-pad by this many pixels, then crop back at a random offset
}

// Enabled reports whether any transform is configured.
func (a Augmentation) Enabled() bool {
	return a.HorizontalFlip || a.CropPadding > 0
}

// apply transforms the CHW image img in place, using scratch (same length)
// as temporary storage.
func (a Augmentation) apply(img, scratch []float32, c, h, w int, rng *rand.Rand) {
	if a.CropPadding > 0 {
		p := a.CropPadding
		dy := rng.Intn(2*p+1) - p
		dx := rng.Intn(2*p+1) - p
		if dy != 0 || dx != 0 {
			shift(img, scratch, c, h, w, dy, dx)
		}
	}
	if a.HorizontalFlip && rng.Intn(2) == 1 {
		flip(img, c, h, w)
	}
}

// shift moves the image content by (dy, dx), filling uncovered pixels with
// zero. It equals cropping a zero-padded image at offset (p+dy, p+dx).
func shift(img, scratch []float32, c, h, w, dy, dx int) {
	copy(scratch, img)
	clear(img)
	for ch := 0; ch < c; ch++ {
		base := ch * h * w
		for y := 0; y < h; y++ {
			sy := y + dy
			if sy < 0 || sy >= h {
				continue
			}
			for x := 0; x < w; x++ {
				sx := x + dx
				if sx < 0 || sx >= w {
					continue
				}
				img[base+y*w+x] = scratch[base+sy*w+sx]
			}
		}
	}
}

// flip mirrors every row of the image.
func flip(img []float32, c, h, w int) {
	for row := 0; row < c*h; row++ {
		r := img[row*w : (row+1)*w]
		for i, j := 0, w-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
	}
}
