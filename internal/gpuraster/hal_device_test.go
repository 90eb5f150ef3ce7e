//go:build !nogpu

package gpuraster

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/glyphraster/bitmap"
	"github.com/gogpu/glyphraster/outline"
	"github.com/gogpu/glyphraster/raster"
)

// skipOnNagaLimitation skips tests that depend on shader features the
// WGSL compiler does not support yet.
func skipOnNagaLimitation(t *testing.T, err error) {
	t.Helper()
	msg := err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
		t.Skipf("Skipping: naga limitation: %v", err)
	}
}

func TestCompileShader(t *testing.T) {
	words, err := CompileShader()
	if err != nil {
		skipOnNagaLimitation(t, err)
		t.Fatalf("CompileShader: %v", err)
	}
	if len(words) == 0 {
		t.Fatal("SPIR-V output is empty")
	}
	if words[0] != 0x07230203 {
		t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", words[0])
	}
}

func openNoop(t *testing.T) hal.OpenDevice {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("create noop instance: %v", err)
	}
	t.Cleanup(instance.Destroy)
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		t.Fatal("noop backend has no adapters")
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("open noop device: %v", err)
	}
	return open
}

func newNoopBackend(t *testing.T) *Backend {
	t.Helper()
	open := openNoop(t)
	dev, err := NewHALDevice(open.Device, open.Queue, capable, true)
	if err != nil {
		skipOnNagaLimitation(t, err)
		t.Fatalf("NewHALDevice: %v", err)
	}
	b := New(dev)
	t.Cleanup(b.Close)
	return b
}

func square() *outline.Outline {
	var bld outline.Builder
	rect(&bld, 1, 1, 5, 5)
	return bld.Outline()
}

func TestHALDevice_RawReadback(t *testing.T) {
	b := newNoopBackend(t)
	job := newJob(square(), 6, 6, raster.SampleNormal)
	job.Subpixel = raster.SubpixelRGB
	d, err := b.Rasterize(job)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if d.Kind() != bitmap.KindRaw {
		t.Fatalf("kind = %v, want Raw", d.Kind())
	}
	if got, want := len(d.Pix()), 6*6*bitmap.BytesPerPixel; got != want {
		t.Errorf("len(pix) = %d, want %d", got, want)
	}
	if d.Format() != bitmap.FormatRGBA8 {
		t.Errorf("format = %v, want RGBA8", d.Format())
	}
}

func TestHALDevice_OwnedImage(t *testing.T) {
	b := newNoopBackend(t)
	job := newJob(square(), 6, 6, raster.SampleCoarse)
	job.EmitImage = true
	job.Format = bitmap.FormatBGRA8
	d, err := b.Rasterize(job)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	v := d.View()
	if v == nil || v.Origin() != bitmap.Owned {
		t.Fatalf("view = %+v, want Owned", v)
	}
	img, ok := v.Image().(*DeviceImage)
	if !ok {
		t.Fatalf("image type %T, want *DeviceImage", v.Image())
	}
	if img.Texture() == nil || img.View() == nil {
		t.Error("device image has no texture")
	}
	if v.Format() != bitmap.FormatBGRA8 {
		t.Errorf("format = %v, want BGRA8", v.Format())
	}
	if err := v.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
	v.Destroy()
	if !v.Destroyed() {
		t.Error("view not destroyed")
	}
}

func TestHALDevice_SharedDeviceSurvivesClose(t *testing.T) {
	open := openNoop(t)
	dev, err := NewHALDevice(open.Device, open.Queue, capable, true)
	if err != nil {
		skipOnNagaLimitation(t, err)
		t.Fatalf("NewHALDevice: %v", err)
	}
	b := New(dev)
	b.Close()

	// The host's device is still usable.
	buf, err := open.Device.CreateBuffer(&hal.BufferDescriptor{Label: "host_buffer", Size: 16, Usage: gputypes.BufferUsageStorage})
	if err != nil {
		t.Fatalf("shared device unusable after Close: %v", err)
	}
	open.Device.DestroyBuffer(buf)
}

func TestHALDevice_TimedOutSubmissionStaysPending(t *testing.T) {
	// No hal device: releasing anything here would dereference it.
	d := &HALDevice{
		pending: make(map[*submission]struct{}),
		images:  make(map[*DeviceImage]struct{}),
	}
	late := &submission{dev: d, index: 7}
	d.pending[late] = struct{}{}
	d.settle(late, fmt.Errorf("readback: %w", ErrTimeout))
	if _, ok := d.pending[late]; !ok {
		t.Fatal("timed out submission was freed")
	}
	if !late.timedOut.Load() {
		t.Error("timed out submission not marked")
	}

	// The image its copy targets is still in use by the GPU.
	img := &DeviceImage{dev: d, sub: late}
	d.images[img] = struct{}{}
	img.Destroy()
	if _, ok := d.images[img]; !ok {
		t.Error("image of a timed out submission was released")
	}

	failed := &submission{dev: d}
	d.pending[failed] = struct{}{}
	d.settle(failed, errors.New("map staging buffer"))
	if _, ok := d.pending[failed]; ok {
		t.Error("failed submission kept pending")
	}
}

func TestHALDevice_DestroyReleasesHeldResources(t *testing.T) {
	open := openNoop(t)
	dev, err := NewHALDevice(open.Device, open.Queue, capable, true)
	if err != nil {
		skipOnNagaLimitation(t, err)
		t.Fatalf("NewHALDevice: %v", err)
	}
	b := New(dev)

	job := newJob(square(), 6, 6, raster.SampleCoarse)
	job.EmitImage = true
	d, err := b.Rasterize(job)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	late := &submission{dev: dev}
	late.timedOut.Store(true)
	dev.mu.Lock()
	dev.pending[late] = struct{}{}
	live := len(dev.images)
	dev.mu.Unlock()
	if live != 1 {
		t.Fatalf("live images = %d, want 1", live)
	}

	b.Close()
	dev.mu.Lock()
	pending, images := len(dev.pending), len(dev.images)
	dev.mu.Unlock()
	if pending != 0 {
		t.Errorf("pending submissions after Destroy = %d, want 0", pending)
	}
	if images != 0 {
		t.Errorf("live images after Destroy on a shared device = %d, want 0", images)
	}
	// Destroying the view afterwards is a no-op.
	d.View().Destroy()
}
