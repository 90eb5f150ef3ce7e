//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glyphraster/bitmap"
	"github.com/gogpu/glyphraster/internal/gpuraster"
	"github.com/gogpu/glyphraster/raster"
)

// New opens a Vulkan device owned by the backend.
func New(opts ...Option) (*Backend, error) {
	c := newConfig(opts)
	if c.logger != nil {
		gpuraster.SetLogger(c.logger)
	}
	dev, err := gpuraster.OpenHAL()
	if err != nil {
		return nil, fmt.Errorf("gpu: %w", err)
	}
	dev.SetCapabilities(c.apply(dev.Capabilities()))
	return wrap(dev, c), nil
}

// halProvider is implemented by device providers that expose their
// wgpu/hal device and queue.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewFromProvider builds a backend on a device owned by the host
// application. The provider must also expose HalDevice() and HalQueue()
// returning hal.Device and hal.Queue. The surface format becomes the
// preferred output format. Close leaves the device alive.
//
// Format-less storage writes are assumed unavailable unless declared with
// WithStorageWriteWithoutFormat.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Backend, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types: %w", raster.ErrUnsupportedDevice)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}

	c := newConfig(opts)
	caps := c.apply(raster.Capabilities{PreferredFormat: surfaceFormat(provider.SurfaceFormat())})
	dev, err := gpuraster.NewHALDevice(device, queue, caps, true)
	if err != nil {
		return nil, fmt.Errorf("gpu: %w", err)
	}
	return wrap(dev, c), nil
}

// surfaceFormat maps a surface texture format to a glyph pixel format.
func surfaceFormat(f gputypes.TextureFormat) bitmap.PixelFormat {
	switch f {
	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		return bitmap.FormatBGRA8
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb:
		return bitmap.FormatRGBA8
	default:
		return bitmap.FormatDefault
	}
}
