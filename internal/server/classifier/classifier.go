// Package classifier implements the cosine classification head used by the
// pipeline. A model artifact is a JSON weights file with one weight vector
// per class; an image is reduced to a normalized feature vector and scored
// by scaled cosine similarity, softmaxed into a probability.
package classifier

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/melcdl/melcdl-backend/internal/server/models"
)

// weights is the on-disk artifact layout.
type weights struct {
	Scale   float64     `json:"scale"`
	Weights [][]float64 `json:"weights"`
}

// Classifier scores images against a fixed set of class weight vectors.
// Safe for concurrent use; the weights are immutable after construction.
type Classifier struct {
	scale float64
	// rows are L2-normalized per class at load time.
	rows [][]float64
}

// Load reads a weights artifact from disk.
func Load(path string) (*Classifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	return Parse(raw)
}

// Parse builds a Classifier from the JSON artifact bytes.
func Parse(raw []byte) (*Classifier, error) {
	var w weights
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	if w.Scale <= 0 {
		return nil, fmt.Errorf("weights: scale must be positive, got %v", w.Scale)
	}
	if len(w.Weights) == 0 {
		return nil, fmt.Errorf("weights: no classes")
	}
	for i, row := range w.Weights {
		if len(row) != featureDim {
			return nil, fmt.Errorf("weights: class %d has %d features, want %d", i, len(row), featureDim)
		}
		normalize(row)
	}
	return &Classifier{scale: w.Scale, rows: w.Weights}, nil
}

// Classes returns the number of classes the artifact scores.
func (c *Classifier) Classes() int {
	return len(c.rows)
}

// Classify decodes the image and returns the winning label with its softmax
// probability.
func (c *Classifier) Classify(r io.Reader) (models.Label, float64, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image: %w", err)
	}
	label, prob := c.ClassifyImage(img)
	return label, prob, nil
}

// ClassifyImage scores an already decoded image.
func (c *Classifier) ClassifyImage(img image.Image) (models.Label, float64) {
	return c.score(extractFeatures(img))
}

// score computes scaled cosine similarity per class and softmaxes the
// logits. The feature vector is normalized in place.
func (c *Classifier) score(features []float64) (models.Label, float64) {
	normalize(features)

	logits := make([]float64, len(c.rows))
	for i, row := range c.rows {
		var sim float64
		for j, f := range features {
			sim += f * row[j]
		}
		logits[i] = c.scale * sim
	}

	// softmax, shifted by the max logit for numeric stability
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}
	var sum float64
	for i, l := range logits {
		logits[i] = math.Exp(l - maxLogit)
		sum += logits[i]
	}

	best, bestProb := 0, 0.0
	for i, e := range logits {
		if p := e / sum; p > bestProb {
			best, bestProb = i, p
		}
	}
	return models.Label(best), bestProb
}

// normalize scales v to unit L2 norm. A zero vector is left untouched.
func normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
}
