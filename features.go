package glyphraster

// Feature is a device capability used by the GPU backend.
type Feature uint8

const (
	// FeatureStorageWriteWithoutFormat allows compute shaders to write a
	// storage image whose format is not declared in the shader. On wgpu
	// it is requested through gputypes.FeatureTextureAdapterSpecificFormatFeatures.
	FeatureStorageWriteWithoutFormat Feature = iota + 1
)

// String returns the feature name.
func (f Feature) String() string {
	switch f {
	case FeatureStorageWriteWithoutFormat:
		return "StorageWriteWithoutFormat"
	default:
		return "Unknown"
	}
}

// RequiredFeatures lists the device features the GPU backend needs to pick
// the output format on its own. Hosts creating a device for glyph
// rasterization should enable them; otherwise every GPU request must set
// RasterOptions.OutputFormat, or the CPU backend must be used.
func RequiredFeatures() []Feature {
	return []Feature{FeatureStorageWriteWithoutFormat}
}
