//go:build !nogpu

package gpuraster

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glyphraster/bitmap"
	"github.com/gogpu/glyphraster/raster"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

//go:embed shaders/glyph.wgsl
var glyphShaderWGSL string

// submitTimeout bounds how long a readback waits for the GPU.
const submitTimeout = 5 * time.Second

// ErrTimeout is returned when a submission does not complete within
// the readback timeout.
var ErrTimeout = errors.New("gpuraster: GPU submission timed out")

// CompileShader compiles the glyph kernels to SPIR-V words.
func CompileShader() ([]uint32, error) {
	spirvBytes, err := naga.Compile(glyphShaderWGSL)
	if err != nil {
		return nil, fmt.Errorf("compile glyph shader: %w", err)
	}
	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// HALDevice runs the glyph kernels through wgpu/hal.
type HALDevice struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	caps     raster.Capabilities

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipelines  map[string]hal.ComputePipeline

	// externalDevice is true when the device belongs to a host
	// application and must not be destroyed.
	externalDevice bool
	destroyed      atomic.Bool

	mu      sync.Mutex
	pending map[*submission]struct{}
	images  map[*DeviceImage]struct{}
}

// OpenHAL opens the first discrete or integrated Vulkan adapter.
// The device reports StorageWriteWithoutFormat when the adapter exposes
// adapter-specific format features.
func OpenHAL() (*HALDevice, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("vulkan backend not available: %w", raster.ErrUnsupportedDevice)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("no GPU adapters found: %w", raster.ErrUnsupportedDevice)
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	var features gputypes.Features
	formatless := selected.Features.Contains(gputypes.FeatureTextureAdapterSpecificFormatFeatures)
	if formatless {
		features = gputypes.Features(gputypes.FeatureTextureAdapterSpecificFormatFeatures)
	}
	openDev, err := selected.Adapter.Open(features, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	caps := raster.Capabilities{StorageWriteWithoutFormat: formatless, PreferredFormat: bitmap.FormatRGBA8}
	d, err := NewHALDevice(openDev.Device, openDev.Queue, caps, false)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	slogger().Info("gpuraster: GPU device opened",
		slog.String("adapter", selected.Info.Name),
		slog.Bool("storage_write_without_format", formatless))
	return d, nil
}

// NewHALDevice builds the glyph pipelines on an open device. When shared
// is true the device and queue belong to the caller and Destroy leaves
// them alive.
func NewHALDevice(device hal.Device, queue hal.Queue, caps raster.Capabilities, shared bool) (*HALDevice, error) {
	d := &HALDevice{
		device:         device,
		queue:          queue,
		caps:           caps,
		externalDevice: shared,
		pending:        make(map[*submission]struct{}),
		images:         make(map[*DeviceImage]struct{}),
	}
	if err := d.createPipelines(); err != nil {
		d.destroyPipelines()
		return nil, fmt.Errorf("create glyph pipelines: %w", err)
	}
	return d, nil
}

// Capabilities implements Device.
func (d *HALDevice) Capabilities() raster.Capabilities { return d.caps }

// SetCapabilities replaces the reported capabilities. It must be called
// before the device is handed to a Backend.
func (d *HALDevice) SetCapabilities(caps raster.Capabilities) { d.caps = caps }

func (d *HALDevice) createPipelines() error {
	words, err := CompileShader()
	if err != nil {
		return err
	}
	d.shader, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "glyph",
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}

	storage := func(binding uint32, typ gputypes.BufferBindingType) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		}
	}
	d.bindLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "glyph_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			storage(0, gputypes.BufferBindingTypeUniform),
			storage(1, gputypes.BufferBindingTypeReadOnlyStorage),
			storage(2, gputypes.BufferBindingTypeStorage),
			storage(3, gputypes.BufferBindingTypeStorage),
			storage(4, gputypes.BufferBindingTypeStorage),
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}

	d.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "glyph_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{d.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	d.pipelines = make(map[string]hal.ComputePipeline, 4)
	for _, entry := range []string{entryCoverage, entryGain, entrySubpixel, entryResolve} {
		p, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:   "glyph_" + entry,
			Layout:  d.pipeLayout,
			Compute: hal.ComputeState{Module: d.shader, EntryPoint: entry},
		})
		if err != nil {
			return fmt.Errorf("create %s pipeline: %w", entry, err)
		}
		d.pipelines[entry] = p
	}
	return nil
}

func (d *HALDevice) destroyPipelines() {
	if d.device == nil {
		return
	}
	for _, p := range d.pipelines {
		d.device.DestroyComputePipeline(p)
	}
	d.pipelines = nil
	if d.pipeLayout != nil {
		d.device.DestroyPipelineLayout(d.pipeLayout)
		d.pipeLayout = nil
	}
	if d.bindLayout != nil {
		d.device.DestroyBindGroupLayout(d.bindLayout)
		d.bindLayout = nil
	}
	if d.shader != nil {
		d.device.DestroyShaderModule(d.shader)
		d.shader = nil
	}
}

// submission holds the transient resources of one in-flight run.
type submission struct {
	dev     *HALDevice
	index   uint64
	cmdBuf  hal.CommandBuffer
	buffers []hal.Buffer
	group   hal.BindGroup
	release sync.Once

	// timedOut marks a submission the GPU may still be executing.
	timedOut atomic.Bool
}

func (s *submission) wait() error {
	if s.dev.destroyed.Load() {
		// Destroy has already waited for the device to go idle.
		return nil
	}
	deadline := time.Now().Add(submitTimeout)
	for s.dev.queue.PollCompleted() < s.index {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: submission %d", ErrTimeout, s.index)
		}
		time.Sleep(50 * time.Microsecond)
	}
	return nil
}

// free destroys the transient resources once.
func (s *submission) free() {
	s.release.Do(func() {
		dev := s.dev
		if s.cmdBuf != nil {
			dev.device.FreeCommandBuffer(s.cmdBuf)
		}
		if s.group != nil {
			dev.device.DestroyBindGroup(s.group)
		}
		for _, b := range s.buffers {
			dev.device.DestroyBuffer(b)
		}
		dev.mu.Lock()
		delete(dev.pending, s)
		dev.mu.Unlock()
	})
}

// Run implements Device.
func (d *HALDevice) Run(p *Plan) (bitmap.Data, error) {
	if d.destroyed.Load() {
		return bitmap.Data{}, ErrClosed
	}
	s := &submission{dev: d}
	d.mu.Lock()
	d.pending[s] = struct{}{}
	d.mu.Unlock()

	data, err := d.run(p, s)
	if err != nil || !p.EmitImage {
		d.settle(s, err)
	}
	return data, err
}

// settle frees s once its run has finished. A submission that timed out
// may still be executing; it stays pending until Destroy has waited for
// the device to go idle.
func (d *HALDevice) settle(s *submission, err error) {
	if errors.Is(err, ErrTimeout) {
		s.timedOut.Store(true)
		slogger().Warn("gpuraster: submission timed out, resources held until close",
			slog.Uint64("submission", s.index))
		return
	}
	s.free()
}

func (d *HALDevice) createBuffer(s *submission, label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("create %s buffer: %w: %w", label, raster.ErrResourceAllocation, err)
	}
	s.buffers = append(s.buffers, buf)
	return buf, nil
}

func (d *HALDevice) run(p *Plan, s *submission) (bitmap.Data, error) {
	params := p.encodeParams()
	edges := p.encodeEdges()
	coverageSize := p.coverageBytes()
	pixelSize := p.pixelBytes()

	paramsBuf, err := d.createBuffer(s, "glyph_params", paramsSize,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return bitmap.Data{}, err
	}
	edgeBuf, err := d.createBuffer(s, "glyph_edges", uint64(len(edges)),
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return bitmap.Data{}, err
	}
	coverageBuf, err := d.createBuffer(s, "glyph_coverage", coverageSize, gputypes.BufferUsageStorage)
	if err != nil {
		return bitmap.Data{}, err
	}
	filteredBuf, err := d.createBuffer(s, "glyph_filtered", coverageSize, gputypes.BufferUsageStorage)
	if err != nil {
		return bitmap.Data{}, err
	}
	pixelBuf, err := d.createBuffer(s, "glyph_pixels", pixelSize,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc)
	if err != nil {
		return bitmap.Data{}, err
	}

	if err := d.queue.WriteBuffer(paramsBuf, 0, params); err != nil {
		return bitmap.Data{}, fmt.Errorf("write params: %w", err)
	}
	if err := d.queue.WriteBuffer(edgeBuf, 0, edges); err != nil {
		return bitmap.Data{}, fmt.Errorf("write edges: %w", err)
	}

	s.group, err = d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "glyph_bind", Layout: d.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: paramsBuf.NativeHandle(), Size: paramsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: edgeBuf.NativeHandle(), Size: uint64(len(edges))}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: coverageBuf.NativeHandle(), Size: coverageSize}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: filteredBuf.NativeHandle(), Size: coverageSize}},
			{Binding: 4, Resource: gputypes.BufferBinding{Buffer: pixelBuf.NativeHandle(), Size: pixelSize}},
		},
	})
	if err != nil {
		return bitmap.Data{}, fmt.Errorf("create bind group: %w", err)
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "glyph_encoder"})
	if err != nil {
		return bitmap.Data{}, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("glyph"); err != nil {
		return bitmap.Data{}, fmt.Errorf("begin encoding: %w", err)
	}

	// One pass per kernel; pass boundaries order the storage writes.
	wx, wy := p.Workgroups()
	for _, entry := range p.Passes() {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: entry})
		pass.SetPipeline(d.pipelines[entry])
		pass.SetBindGroup(0, s.group, nil)
		pass.Dispatch(wx, wy, 1)
		pass.End()
	}

	if p.EmitImage {
		return d.finishImage(p, s, encoder, pixelBuf)
	}
	return d.finishRaw(p, s, encoder, pixelBuf)
}

// finishRaw copies the packed pixels to a staging buffer and reads them
// back after the submission completes.
func (d *HALDevice) finishRaw(p *Plan, s *submission, encoder hal.CommandEncoder, pixelBuf hal.Buffer) (bitmap.Data, error) {
	size := p.pixelBytes()
	staging, err := d.createBuffer(s, "glyph_staging", size,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		encoder.DiscardEncoding()
		return bitmap.Data{}, err
	}
	encoder.CopyBufferToBuffer(pixelBuf, staging, []hal.BufferCopy{{Size: size}})

	if err := d.submit(s, encoder); err != nil {
		return bitmap.Data{}, err
	}
	if err := s.wait(); err != nil {
		return bitmap.Data{}, err
	}

	mapping, err := d.device.MapBuffer(staging, 0, size)
	if err != nil {
		return bitmap.Data{}, fmt.Errorf("map staging buffer: %w", err)
	}
	packed := make([]byte, size)
	copy(packed, unsafe.Slice((*byte)(mapping.Ptr), size)) //nolint:gosec // mapping covers size bytes
	if err := d.device.UnmapBuffer(staging); err != nil {
		return bitmap.Data{}, fmt.Errorf("unmap staging buffer: %w", err)
	}
	return bitmap.RawData(p.unpad(packed), p.Format), nil
}

// finishImage copies the packed pixels into a sampled texture and returns
// an Owned view without waiting. Waiting on the view frees the transient
// buffers.
func (d *HALDevice) finishImage(p *Plan, s *submission, encoder hal.CommandEncoder, pixelBuf hal.Buffer) (bitmap.Data, error) {
	format := gputypes.TextureFormatRGBA8Unorm
	if p.Format == bitmap.FormatBGRA8 {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	size := hal.Extent3D{Width: p.Width, Height: p.Height, DepthOrArrayLayers: 1}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "glyph_image",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return bitmap.Data{}, fmt.Errorf("create glyph texture: %w: %w", raster.ErrResourceAllocation, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "glyph_image_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		encoder.DiscardEncoding()
		d.device.DestroyTexture(tex)
		return bitmap.Data{}, fmt.Errorf("create glyph texture view: %w", err)
	}
	img := &DeviceImage{dev: d, sub: s, texture: tex, view: view, width: p.Width, height: p.Height, format: p.Format}
	d.mu.Lock()
	d.images[img] = struct{}{}
	d.mu.Unlock()

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage:   hal.TextureUsageTransition{OldUsage: 0, NewUsage: gputypes.TextureUsageCopyDst},
	}})
	encoder.CopyBufferToTexture(pixelBuf, tex, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  p.RowStride() * bitmap.BytesPerPixel,
			RowsPerImage: p.Height,
		},
		TextureBase: hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		Size:        size,
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopyDst,
			NewUsage: gputypes.TextureUsageTextureBinding,
		},
	}})

	if err := d.submit(s, encoder); err != nil {
		img.Destroy()
		return bitmap.Data{}, err
	}
	wait := func() error {
		err := s.wait()
		d.settle(s, err)
		return err
	}
	return bitmap.ImageData(bitmap.NewOwned(img, wait)), nil
}

func (d *HALDevice) submit(s *submission, encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	idx, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		d.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("submit: %w", err)
	}
	s.index = idx
	s.cmdBuf = cmdBuf
	return nil
}

// Destroy waits for the GPU, releases in-flight resources, live images
// and the pipelines, and destroys the device unless it is shared.
func (d *HALDevice) Destroy() {
	if d.destroyed.Swap(true) {
		return
	}
	if err := d.device.WaitIdle(); err != nil {
		slogger().Warn("gpuraster: wait idle on close", slog.Any("error", err))
	}
	d.mu.Lock()
	pending := make([]*submission, 0, len(d.pending))
	for s := range d.pending {
		pending = append(pending, s)
	}
	images := make([]*DeviceImage, 0, len(d.images))
	for img := range d.images {
		images = append(images, img)
	}
	d.mu.Unlock()
	for _, s := range pending {
		s.free()
	}
	for _, img := range images {
		img.free()
	}

	d.destroyPipelines()
	if !d.externalDevice {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
}

// DeviceImage is a sampled texture holding one glyph.
type DeviceImage struct {
	dev     *HALDevice
	sub     *submission
	texture hal.Texture
	view    hal.TextureView
	width   uint32
	height  uint32
	format  bitmap.PixelFormat
	release sync.Once
}

// Width implements bitmap.Image.
func (i *DeviceImage) Width() uint32 { return i.width }

// Height implements bitmap.Image.
func (i *DeviceImage) Height() uint32 { return i.height }

// Format implements bitmap.Image.
func (i *DeviceImage) Format() bitmap.PixelFormat { return i.format }

// Texture returns the backing hal texture.
func (i *DeviceImage) Texture() hal.Texture { return i.texture }

// View returns a 2D view of the texture.
func (i *DeviceImage) View() hal.TextureView { return i.view }

// Destroy implements bitmap.Image. An image whose copy timed out, or
// that is still alive when its device is destroyed, is released by
// HALDevice.Destroy.
func (i *DeviceImage) Destroy() {
	if i.dev.destroyed.Load() || i.sub.timedOut.Load() {
		return
	}
	i.free()
}

func (i *DeviceImage) free() {
	i.release.Do(func() {
		i.dev.device.DestroyTextureView(i.view)
		i.dev.device.DestroyTexture(i.texture)
		i.dev.mu.Lock()
		delete(i.dev.images, i)
		i.dev.mu.Unlock()
	})
}
