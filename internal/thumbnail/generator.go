// Package thumbnail generates static and animated thumbnails for downloaded
// videos.
package thumbnail

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/image/draw"

	"github.com/iconidentify/xfetch/internal/config"
	"github.com/iconidentify/xfetch/internal/domain"
	"github.com/iconidentify/xfetch/pkg/ffmpeg"
)

// Progress phase boundaries. Sampling covers 5-50, encoding 55-95, with 0
// and 100 as bookends.
const (
	samplingStart = 5
	samplingEnd   = 50
	encodingStart = 55
	encodingEnd   = 95
)

// ProgressFunc receives generation progress as a 0-100 percentage.
type ProgressFunc func(percent int)

// Generator produces thumbnails from video files.
type Generator struct {
	proc   *ffmpeg.VideoProcessor
	cfg    config.ThumbnailConfig
	logger *slog.Logger
}

// NewGenerator creates a thumbnail generator.
func NewGenerator(proc *ffmpeg.VideoProcessor, cfg config.ThumbnailConfig, logger *slog.Logger) *Generator {
	return &Generator{
		proc:   proc,
		cfg:    cfg,
		logger: logger.With("component", "thumbnail"),
	}
}

// Static writes a JPEG thumbnail from the frame nearest the start of the
// video, downscaled to the configured width.
func (g *Generator) Static(ctx context.Context, videoPath, outPath string) error {
	tempDir, err := os.MkdirTemp(filepath.Dir(outPath), "static-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	framePath := filepath.Join(tempDir, "frame.jpg")
	if err := g.proc.ExtractFrame(ctx, videoPath, 0, 0, framePath); err != nil {
		return fmt.Errorf("extract first frame: %w", err)
	}

	img, err := loadJPEG(framePath)
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	scaled := g.scale(img)

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".thumb-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	err = jpeg.Encode(tmp, scaled, &jpeg.Options{Quality: g.cfg.JPEGQuality})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("encode thumbnail: %w", err)
	}

	if err := os.Rename(tmpName, outPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename thumbnail: %w", err)
	}
	return nil
}

// Animated writes a looping GIF thumbnail sampled from a centered window of
// the video, atomically replacing outPath. onProgress may be nil.
func (g *Generator) Animated(ctx context.Context, videoPath, outPath string, onProgress ProgressFunc) error {
	report := func(percent int) {
		if onProgress != nil {
			onProgress(percent)
		}
	}
	report(0)

	info, err := g.proc.GetVideoInfo(ctx, videoPath)
	if err != nil {
		return fmt.Errorf("probe video: %w", err)
	}

	timestamps := SampleTimestamps(info.Duration, g.cfg.WindowSeconds, g.cfg.SampleRate, g.cfg.MaxFrames)

	tempDir, err := os.MkdirTemp(filepath.Dir(outPath), "frames-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	report(samplingStart)
	framePaths, err := g.proc.ExtractFrames(ctx, videoPath, ffmpeg.ExtractFramesConfig{
		Timestamps: timestamps,
		OutputDir:  tempDir,
		OnFrame: func(done, total int) {
			report(samplingStart + done*(samplingEnd-samplingStart)/total)
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNoFrames, err)
	}

	var frames []image.Image
	for _, path := range framePaths {
		img, err := loadJPEG(path)
		if err != nil {
			// A frame that extracted but won't decode is skipped like a
			// failed extraction.
			g.logger.Warn("skipping undecodable frame", "path", path, "error", err)
			continue
		}
		frames = append(frames, g.scale(img))
	}
	if len(frames) == 0 {
		return domain.ErrNoFrames
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".anim-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	report(encodingStart)
	err = encodeGIF(tmp, frames, g.cfg.FrameDelay, func(done, total int) {
		report(encodingStart + done*(encodingEnd-encodingStart)/total)
	})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("encode gif: %w", err)
	}

	if err := os.Rename(tmpName, outPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename thumbnail: %w", err)
	}

	report(100)
	return nil
}

// scale downscales an image to the configured width preserving aspect.
// Images already at or below the target width pass through.
func (g *Generator) scale(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= g.cfg.Width {
		return img
	}

	height := bounds.Dy() * g.cfg.Width / bounds.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, g.cfg.Width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// encodeGIF writes frames as a looping GIF with a fixed per-frame delay,
// quantizing a palette per frame.
func encodeGIF(w io.Writer, frames []image.Image, frameDelay time.Duration, onFrame func(done, total int)) error {
	delay := int(frameDelay.Milliseconds() / 10) // gif delay unit is 1/100s
	if delay < 1 {
		delay = 1
	}

	anim := &gif.GIF{LoopCount: 0}
	q := quantize.MedianCutQuantizer{}

	for i, frame := range frames {
		bounds := frame.Bounds()
		palette := q.Quantize(make([]color.Color, 0, 256), frame)
		paletted := image.NewPaletted(bounds, palette)
		draw.Draw(paletted, bounds, frame, bounds.Min, draw.Src)

		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)

		if onFrame != nil {
			onFrame(i+1, len(frames))
		}
	}

	return gif.EncodeAll(w, anim)
}

func loadJPEG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}
