//go:build nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/glyphraster/raster"
)

// New reports raster.ErrUnsupportedDevice in nogpu builds.
func New(...Option) (*Backend, error) {
	return nil, fmt.Errorf("gpu: built with nogpu: %w", raster.ErrUnsupportedDevice)
}

// NewFromProvider reports raster.ErrUnsupportedDevice in nogpu builds.
func NewFromProvider(gpucontext.DeviceProvider, ...Option) (*Backend, error) {
	return nil, fmt.Errorf("gpu: built with nogpu: %w", raster.ErrUnsupportedDevice)
}
