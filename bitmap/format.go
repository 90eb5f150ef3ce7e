package bitmap

// PixelFormat is the channel layout of 4-byte pixels.
type PixelFormat uint8

const (
	// FormatDefault lets the backend negotiate the format with the device.
	FormatDefault PixelFormat = iota
	// FormatRGBA8 stores R, G, B, A bytes in order.
	FormatRGBA8
	// FormatBGRA8 stores B, G, R, A bytes in order.
	FormatBGRA8
)

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case FormatDefault:
		return "Default"
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	default:
		return "Unknown"
	}
}

// BytesPerPixel is the size of one pixel in every supported format.
const BytesPerPixel = 4
