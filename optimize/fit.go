package optimize

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// Fit is the geometric rule used to map a source image into a target rectangle.
type Fit int

const (
	// FitNone leaves the image geometry untouched.
	FitNone Fit = iota
	// FitContain scales the whole image into the target, preserving aspect ratio,
	// and pads any remaining space with white.
	FitContain
	// FitCover scales the image to cover the target, preserving aspect ratio,
	// and crops whatever overflows around the center.
	FitCover
	// FitFill stretches the image to the target, ignoring aspect ratio.
	FitFill
)

var fitNames = map[Fit]string{
	FitNone:    "none",
	FitContain: "contain",
	FitCover:   "cover",
	FitFill:    "fill",
}

func (f Fit) String() string {
	if name, ok := fitNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Fit(%d)", int(f))
}

// ParseFit converts a config value such as “contain” into a [Fit].
// An empty string selects [FitContain].
func ParseFit(s string) (Fit, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FitContain, nil
	}
	for fit, name := range fitNames {
		if name == s {
			return fit, nil
		}
	}
	return FitNone, fmt.Errorf("unknown fit %q (want none, contain, cover, or fill)", s)
}

// Target is the exact output canvas, in pixels.
type Target struct {
	Width  int
	Height int
	Fit    Fit
}

// Background is the color used for padding, and for flattening transparent pixels.
var Background color.Color = color.White

// prepare returns the pixel buffer that every encode attempt starts from.
func prepare(src image.Image, target *Target) *image.NRGBA {
	if target == nil || target.Fit == FitNone || target.Width <= 0 || target.Height <= 0 {
		return flatten(src, src.Bounds().Dx(), src.Bounds().Dy())
	}

	w, h := target.Width, target.Height
	switch target.Fit {
	case FitCover:
		return flatten(imaging.Fill(src, w, h, imaging.Center, imaging.Lanczos), w, h)
	case FitFill:
		return flatten(imaging.Resize(src, w, h, imaging.Lanczos), w, h)
	default:
		return flatten(contain(src, w, h), w, h)
	}
}

// contain scales src up or down so that it fits entirely within w×h.
func contain(src image.Image, w, h int) image.Image {
	srcW, srcH := src.Bounds().Dx(), src.Bounds().Dy()
	if srcW == 0 || srcH == 0 {
		return src
	}
	ratio := math.Min(float64(w)/float64(srcW), float64(h)/float64(srcH))
	newW := max(1, min(w, int(math.Round(float64(srcW)*ratio))))
	newH := max(1, min(h, int(math.Round(float64(srcH)*ratio))))
	if newW == srcW && newH == srcH {
		return src
	}
	return imaging.Resize(src, newW, newH, imaging.Lanczos)
}

// flatten centers img on an opaque w×h canvas, so that padding & transparency both become [Background].
func flatten(img image.Image, w, h int) *image.NRGBA {
	canvas := imaging.New(w, h, Background)
	return imaging.OverlayCenter(canvas, img, 1.0)
}
