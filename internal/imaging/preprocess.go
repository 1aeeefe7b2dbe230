// Package imaging turns uploaded phone photos into the fixed-size JPEG
// thumbnails the picture frames display.
//
// Every file goes through NormalizeFormat and then ResizeToFrame, in that
// order. HEIC/HEIF input is converted to JPEG first because the frames and
// the Go image decoders cannot read it.
package imaging

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	apperrors "photo-frame-portal/internal/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
)

const (
	FrameWidth  = 240
	FrameHeight = 320
	JPEGQuality = 85
)

// Source is one uploaded file
type Source struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Converter turns HEIC/HEIF bytes into JPEG bytes
type Converter interface {
	Convert(ctx context.Context, data []byte) ([]byte, error)
}

// Preprocessor runs the normalize → resize pipeline
type Preprocessor struct {
	converter Converter
}

// NewPreprocessor creates a preprocessor using converter for HEIC input
func NewPreprocessor(converter Converter) *Preprocessor {
	return &Preprocessor{converter: converter}
}

// Process returns the frame-ready JPEG for src
func (p *Preprocessor) Process(ctx context.Context, src Source) ([]byte, error) {
	img, err := p.NormalizeFormat(ctx, src)
	if err != nil {
		return nil, err
	}
	return ResizeToFrame(img)
}

// IsHEIC reports whether src is a HEIC/HEIF image, judged by extension,
// declared content type or, failing both, the file's magic bytes.
func IsHEIC(src Source) bool {
	switch strings.ToLower(filepath.Ext(src.Filename)) {
	case ".heic", ".heif":
		return true
	}
	switch strings.ToLower(src.ContentType) {
	case "image/heic", "image/heif":
		return true
	}
	if len(src.Data) == 0 {
		return false
	}
	mt := mimetype.Detect(src.Data)
	return mt.Is("image/heic") || mt.Is("image/heif") ||
		mt.Is("image/heic-sequence") || mt.Is("image/heif-sequence")
}

// NormalizeFormat decodes src into an image, converting HEIC/HEIF first.
// Converter problems yield CONVERSION_ERROR, undecodable data PROCESSING_ERROR.
func (p *Preprocessor) NormalizeFormat(ctx context.Context, src Source) (image.Image, error) {
	data := src.Data
	if IsHEIC(src) {
		if p.converter == nil {
			return nil, apperrors.Conversion(ErrConverterUnavailable)
		}
		converted, err := p.converter.Convert(ctx, data)
		if err != nil {
			return nil, apperrors.Conversion(err)
		}
		data = converted
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Processing(err)
	}
	return img, nil
}

// CropRect returns the largest centered 3:4 region of a w×h image.
// Wider sources lose equal strips left and right, taller ones top and bottom.
// The region is never narrower or shorter than one pixel.
func CropRect(w, h int) image.Rectangle {
	if w*FrameHeight > h*FrameWidth {
		sw := max(h*FrameWidth/FrameHeight, 1)
		sx := (w - sw) / 2
		return image.Rect(sx, 0, sx+sw, h)
	}
	sh := max(w*FrameHeight/FrameWidth, 1)
	sy := (h - sh) / 2
	return image.Rect(0, sy, w, sy+sh)
}

// ResizeToFrame center-crops img to 3:4 and scales it to exactly 240×320 JPEG
func ResizeToFrame(img image.Image) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, apperrors.Processing(errEmptyImage)
	}

	crop := CropRect(b.Dx(), b.Dy()).Add(b.Min)
	cropped := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(cropped, cropped.Bounds(), img, crop.Min, draw.Src)

	scaled := resize.Resize(FrameWidth, FrameHeight, cropped, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, apperrors.Processing(err)
	}
	return buf.Bytes(), nil
}
