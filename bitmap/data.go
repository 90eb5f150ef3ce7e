package bitmap

import (
	"errors"
	"fmt"
)

// Kind identifies which variant a Data holds.
type Kind uint8

const (
	// KindEmpty has no samples.
	KindEmpty Kind = iota
	// KindRaw holds a host byte buffer.
	KindRaw
	// KindImage holds a GPU image view.
	KindImage
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "Empty"
	case KindRaw:
		return "Raw"
	case KindImage:
		return "Image"
	default:
		return "Unknown"
	}
}

// Data is the pixel payload of a rasterized glyph. It holds exactly one of
// Empty, Raw or Image. The zero value is Empty.
//
// Raw pixels are width*height*4 bytes, row-major, without row padding.
// Color channels carry coverage-weighted values and alpha is the maximum
// of the three color channels (not premultiplied).
type Data struct {
	kind   Kind
	pix    []byte
	view   *ImageView
	format PixelFormat // FormatDefault for Empty
}

// EmptyData returns the Empty variant.
func EmptyData() Data {
	return Data{}
}

// RawData wraps pix, which the Data takes ownership of.
func RawData(pix []byte, format PixelFormat) Data {
	return Data{kind: KindRaw, pix: pix, format: format}
}

// ImageData wraps a GPU image view.
func ImageData(v *ImageView) Data {
	return Data{kind: KindImage, view: v, format: v.Format()}
}

// Kind returns the held variant.
func (d Data) Kind() Kind { return d.kind }

// IsEmpty reports whether d is the Empty variant.
func (d Data) IsEmpty() bool { return d.kind == KindEmpty }

// Pix returns the raw pixels, or nil for other variants.
// The slice is shared; callers must not modify it.
func (d Data) Pix() []byte { return d.pix }

// View returns the image view, or nil for other variants.
func (d Data) View() *ImageView { return d.view }

// Format returns the channel layout of the pixels.
func (d Data) Format() PixelFormat { return d.format }

// Release destroys an Owned image held by d. It is a no-op for Raw, Empty
// and Borrowed images.
func (d Data) Release() {
	if d.view != nil {
		d.view.Destroy()
	}
}

// ErrEmptyMismatch is returned by Finish when a backend result violates the
// Empty-iff-zero-size rule.
var ErrEmptyMismatch = errors.New("bitmap: empty result for non-empty glyph")

// Finish checks a backend result against the metrics it was produced for.
// Zero-size metrics always yield Empty (any other payload is released);
// non-zero metrics must not yield Empty, and Raw payloads must be exactly
// width*height*4 bytes.
func Finish(m Metrics, d Data) (Data, error) {
	if m.IsZero() {
		d.Release()
		return EmptyData(), nil
	}
	switch d.kind {
	case KindEmpty:
		return Data{}, ErrEmptyMismatch
	case KindRaw:
		if want := int(m.Width) * int(m.Height) * BytesPerPixel; len(d.pix) != want {
			return Data{}, fmt.Errorf("bitmap: raw buffer has %d bytes, want %d", len(d.pix), want)
		}
	case KindImage:
		if d.view.Width() != m.Width || d.view.Height() != m.Height {
			d.Release()
			return Data{}, fmt.Errorf("bitmap: image is %dx%d, want %dx%d",
				d.view.Width(), d.view.Height(), m.Width, m.Height)
		}
	}
	return d, nil
}
