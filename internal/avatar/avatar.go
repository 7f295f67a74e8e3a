// Package avatar validates uploaded profile images and normalizes them to a
// fixed-size PNG.
package avatar

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

const (
	// MaxUploadBytes is the largest accepted upload.
	MaxUploadBytes = 1_000_000
	// Size is the edge length of every stored avatar.
	Size = 250
	// MaxPixels bounds the decoded dimensions of an upload.
	MaxPixels = 50_000_000
)

var (
	ErrTooLarge    = errors.New("file too large")
	ErrUnsupported = errors.New("please upload an image")
	ErrUndecodable = errors.New("unable to read image")
	ErrDimensions  = errors.New("image dimensions too large")
)

var allowedExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// ValidateUpload checks the declared filename and the byte size of an upload.
func ValidateUpload(filename string, size int64) error {
	if size > MaxUploadBytes {
		return ErrTooLarge
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return ErrUnsupported
	}
	return nil
}

// Normalize decodes a JPEG or PNG image, crops the centred square, scales it
// to Size x Size and re-encodes it as PNG. Dimensions are checked before the
// pixel data is decoded.
func Normalize(data []byte) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if format != "jpeg" && format != "png" {
		return nil, ErrUnsupported
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensions, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, centerSquare(src.Bounds()), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}

// centerSquare returns the largest square inside b sharing its centre.
func centerSquare(b image.Rectangle) image.Rectangle {
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}
