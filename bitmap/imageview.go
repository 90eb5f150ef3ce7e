package bitmap

import (
	"sync"
	"sync/atomic"
)

// Image is a GPU-resident pixel resource of Width*Height 4-byte pixels.
type Image interface {
	Width() uint32
	Height() uint32
	Format() PixelFormat
	// Destroy releases the device resources. It is called at most once by
	// an Owned ImageView.
	Destroy()
}

// Origin tells whether an ImageView is responsible for its image.
type Origin uint8

const (
	// Owned views destroy the backing image when destroyed.
	Owned Origin = iota
	// Borrowed views reference an image owned elsewhere and never destroy it.
	Borrowed
)

// String returns the origin name.
func (o Origin) String() string {
	if o == Borrowed {
		return "Borrowed"
	}
	return "Owned"
}

// ImageView is a handle over an Image together with its ownership.
//
// An Owned view and all of its clones share a single destruction
// obligation: the first Destroy on any of them releases the image and the
// rest are no-ops. A Borrowed view carries no obligation at all.
//
// ImageView is safe for concurrent use.
type ImageView struct {
	image  Image
	origin Origin
	owner  *ownership // nil for Borrowed
}

// ownership is the destruction obligation shared by an Owned view and its
// clones.
type ownership struct {
	wait      func() error
	waitOnce  sync.Once
	waitErr   error
	destroy   sync.Once
	destroyed atomic.Bool
}

// NewOwned returns an Owned view over img. wait, if non-nil, blocks until
// the device work producing img has completed; it is called at most once.
func NewOwned(img Image, wait func() error) *ImageView {
	return &ImageView{
		image:  img,
		origin: Owned,
		owner:  &ownership{wait: wait},
	}
}

// NewBorrowed returns a view over an image owned elsewhere, such as a
// swapchain attachment.
func NewBorrowed(img Image) *ImageView {
	return &ImageView{image: img, origin: Borrowed}
}

// Image returns the backing image.
func (v *ImageView) Image() Image { return v.image }

// Origin returns whether the view owns its image.
func (v *ImageView) Origin() Origin { return v.origin }

// Width returns the image width in pixels.
func (v *ImageView) Width() uint32 { return v.image.Width() }

// Height returns the image height in pixels.
func (v *ImageView) Height() uint32 { return v.image.Height() }

// Format returns the image channel layout.
func (v *ImageView) Format() PixelFormat { return v.image.Format() }

// Clone returns a view over the same image. Clones of an Owned view share
// its destruction obligation.
func (v *ImageView) Clone() *ImageView {
	c := *v
	return &c
}

// Wait blocks until the image contents are ready for use. Borrowed views
// are always ready.
func (v *ImageView) Wait() error {
	o := v.owner
	if o == nil {
		return nil
	}
	o.waitOnce.Do(func() {
		if o.wait != nil {
			o.waitErr = o.wait()
		}
	})
	return o.waitErr
}

// Destroyed reports whether the backing image of an Owned view has been
// released. It is always false for Borrowed views.
func (v *ImageView) Destroyed() bool {
	return v.owner != nil && v.owner.destroyed.Load()
}

// Destroy releases an Owned image after any pending device work finishes.
// It is safe to call on every clone; the image is destroyed exactly once.
// Destroy is a no-op for Borrowed views.
func (v *ImageView) Destroy() {
	o := v.owner
	if o == nil {
		return
	}
	o.destroy.Do(func() {
		_ = v.Wait()
		v.image.Destroy()
		o.destroyed.Store(true)
	})
}
