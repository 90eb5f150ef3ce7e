// Command glyphdemo renders a line of text with the glyph rasterizer and
// saves it as a PNG.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log"
	"log/slog"
	"math"
	"os"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/glyphraster"
	"github.com/gogpu/glyphraster/gpu"
	"github.com/gogpu/glyphraster/raster"
)

const padding = 8

func main() {
	var (
		text     = flag.String("text", "Hello, glyphs!", "text to render")
		size     = flag.Float64("size", 48, "font size in pixels per em")
		fontPath = flag.String("font", "", "TTF/OTF file (default: Go Regular)")
		output   = flag.String("output", "glyphs.png", "output file")
		backend  = flag.String("backend", "cpu", "cpu, gpu (Vulkan) or soft (GPU kernels on the host)")
		subpixel = flag.String("subpixel", "none", "none, rgb, bgr, vrgb or vbgr (GPU backends only)")
		quality  = flag.String("quality", "normal", "coarse, normal or fine sampling")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		glyphraster.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	opts, err := rasterOptions(*backend, *subpixel, *quality)
	if err != nil {
		log.Fatal(err)
	}

	var libOpts []glyphraster.Option
	switch *backend {
	case "gpu":
		b, err := gpu.New()
		if err != nil {
			log.Fatalf("Failed to open GPU: %v", err)
		}
		defer b.Close()
		libOpts = append(libOpts, glyphraster.WithGPU(b))
	case "soft":
		b := gpu.NewSoftware(raster.Capabilities{StorageWriteWithoutFormat: true})
		defer b.Close()
		libOpts = append(libOpts, glyphraster.WithGPU(b))
	}

	data := goregular.TTF
	if *fontPath != "" {
		data, err = os.ReadFile(*fontPath)
		if err != nil {
			log.Fatalf("Failed to read font: %v", err)
		}
	}

	lib := glyphraster.NewLibrary(libOpts...)
	defer lib.Close()
	src, err := lib.AddFont("demo", glyphraster.WeightRegular, data)
	if err != nil {
		log.Fatalf("Failed to load font: %v", err)
	}

	glyphs, err := lib.GlyphsForText("demo", glyphraster.WeightRegular, float32(*size), *text, opts)
	if err != nil {
		log.Fatalf("Failed to rasterize: %v", err)
	}

	props := src.Properties()
	scale := float32(*size) / float32(props.UnitsPerEm)
	ascent := int(math.Ceil(float64(props.Ascender * scale)))
	descent := int(math.Ceil(float64(-props.Descender * scale)))

	var advance float32
	for _, g := range glyphs {
		advance += g.XAdvance
	}
	w := int(math.Ceil(float64(advance))) + 2*padding
	h := ascent + descent + 2*padding
	baseline := padding + ascent

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	for _, g := range glyphs {
		if g.Glyph == nil || g.Glyph.Data.IsEmpty() {
			continue
		}
		x := padding + int(math.Round(float64(g.X+g.XOffset))) + int(g.Glyph.Metrics.BearingX)
		y := baseline - int(math.Round(float64(g.Y+g.YOffset))) - int(g.Glyph.Metrics.BearingY)
		composite(img, g.Glyph, x, y)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	log.Printf("Text saved to %s (%dx%d, %d glyphs)\n", *output, w, h, len(glyphs))
}

func rasterOptions(backend, subpixel, quality string) (glyphraster.RasterOptions, error) {
	opts := glyphraster.RasterOptions{AlignWholePixels: true, OutputFormat: glyphraster.FormatRGBA8}
	switch backend {
	case "cpu":
	case "gpu", "soft":
		opts.Backend = glyphraster.BackendGPU
	default:
		return opts, fmt.Errorf("unknown backend %q", backend)
	}
	switch subpixel {
	case "none":
	case "rgb":
		opts.Subpixel = glyphraster.SubpixelRGB
	case "bgr":
		opts.Subpixel = glyphraster.SubpixelBGR
	case "vrgb":
		opts.Subpixel = glyphraster.SubpixelVRGB
	case "vbgr":
		opts.Subpixel = glyphraster.SubpixelVBGR
	default:
		return opts, fmt.Errorf("unknown subpixel layout %q", subpixel)
	}
	switch quality {
	case "coarse":
		opts.SampleQuality, opts.FillQuality = glyphraster.SampleCoarse, glyphraster.FillCoarse
	case "normal":
	case "fine":
		opts.SampleQuality, opts.FillQuality = glyphraster.SampleFine, glyphraster.FillFine
	default:
		return opts, fmt.Errorf("unknown quality %q", quality)
	}
	return opts, nil
}

// composite draws black text over dst using per-channel coverage.
func composite(dst *image.RGBA, g *glyphraster.Glyph, x0, y0 int) {
	m := g.Metrics
	pix := g.Data.Pix()
	for y := 0; y < int(m.Height); y++ {
		for x := 0; x < int(m.Width); x++ {
			px, py := x0+x, y0+y
			if !image.Pt(px, py).In(dst.Rect) {
				continue
			}
			o := (y*int(m.Width) + x) * 4
			c := dst.RGBAAt(px, py)
			dst.SetRGBA(px, py, color.RGBA{
				R: c.R - uint8(uint16(c.R)*uint16(pix[o])/255),
				G: c.G - uint8(uint16(c.G)*uint16(pix[o+1])/255),
				B: c.B - uint8(uint16(c.B)*uint16(pix[o+2])/255),
				A: 255,
			})
		}
	}
}
