package classifier

import (
	"image"

	"golang.org/x/image/draw"
)

// The feature vector is a gridSize x gridSize RGB downsample of the image,
// each channel mapped from [0, 255] to [-1, 1].
const (
	gridSize   = 16
	featureDim = gridSize * gridSize * 3
)

func extractFeatures(img image.Image) []float64 {
	small := image.NewRGBA(image.Rect(0, 0, gridSize, gridSize))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	features := make([]float64, 0, featureDim)
	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			offset := small.PixOffset(x, y)
			for ch := 0; ch < 3; ch++ {
				v := float64(small.Pix[offset+ch]) / 255.0
				features = append(features, (v-0.5)/0.5)
			}
		}
	}
	return features
}
