// Package optimize shrinks captured screenshots into size-bounded JPEGs.
package optimize

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
)

const (
	DefaultBudgetKB       = 70
	DefaultInitialQuality = 80
	DefaultMinQuality     = 20
	DefaultQualityStep    = 5
)

// Result is the final encoding chosen by the optimizer.
type Result struct {
	Bytes        []byte
	Quality      int
	Attempts     int
	Width        int
	Height       int
	WithinBudget bool
}

// Optimizer searches downwards from InitialQuality, in steps of QualityStep, for the first JPEG
// encoding that fits a size budget, never going below MinQuality.
type Optimizer struct {
	InitialQuality int
	MinQuality     int
	QualityStep    int
}

// Default is the optimizer used by [Optimize]: 80 → 20 in steps of 5, so at most 13 encodes.
var Default = Optimizer{
	InitialQuality: DefaultInitialQuality,
	MinQuality:     DefaultMinQuality,
	QualityStep:    DefaultQualityStep,
}

// Optimize decodes raw, fits it to target (if any), and re-encodes it using [Default].
func Optimize(raw []byte, budgetKB int, target *Target) (*Result, error) {
	return Default.Optimize(raw, budgetKB, target)
}

// Optimize decodes raw, fits it to target (if any), and re-encodes it as JPEG at decreasing quality
// until it fits within budgetKB kilobytes. Reaching the quality floor is not an error: the result at
// the floor is returned with WithinBudget set to false. Only a decode or encode failure is an error.
func (o Optimizer) Optimize(raw []byte, budgetKB int, target *Target) (*Result, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return o.OptimizeImage(img, budgetKB, target)
}

// OptimizeImage is like [Optimizer.Optimize], but starts from an already-decoded image.
func (o Optimizer) OptimizeImage(img image.Image, budgetKB int, target *Target) (*Result, error) {
	o = o.withDefaults()
	if budgetKB <= 0 {
		budgetKB = DefaultBudgetKB
	}
	budget := budgetKB * 1024

	// Every attempt encodes this same buffer, so quality loss never compounds across attempts.
	src := prepare(img, target)

	quality := o.InitialQuality
	attempts := 0
	var buf bytes.Buffer
	for {
		buf.Reset()
		if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG at quality %d: %w", quality, err)
		}
		attempts++
		slog.Debug("encoded",
			"quality", quality,
			"size", humanize.IBytes(uint64(buf.Len())),
			"budget", humanize.IBytes(uint64(budget)))

		if buf.Len() <= budget || quality <= o.MinQuality {
			break
		}
		quality = max(o.MinQuality, quality-o.QualityStep)
	}

	bounds := src.Bounds()
	return &Result{
		Bytes:        bytes.Clone(buf.Bytes()),
		Quality:      quality,
		Attempts:     attempts,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		WithinBudget: buf.Len() <= budget,
	}, nil
}

func (o Optimizer) withDefaults() Optimizer {
	if o.InitialQuality <= 0 || o.InitialQuality > 100 {
		o.InitialQuality = DefaultInitialQuality
	}
	if o.MinQuality <= 0 || o.MinQuality > o.InitialQuality {
		o.MinQuality = min(DefaultMinQuality, o.InitialQuality)
	}
	if o.QualityStep <= 0 {
		o.QualityStep = DefaultQualityStep
	}
	return o
}
