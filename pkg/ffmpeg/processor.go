package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// VideoProcessor handles video probing and frame extraction using ffmpeg.
type VideoProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewVideoProcessor creates a new video processor.
// It will attempt to find ffmpeg and ffprobe in PATH.
func NewVideoProcessor() (*VideoProcessor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &VideoProcessor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}, nil
}

// VideoInfo contains metadata about a video file.
type VideoInfo struct {
	Duration  float64 // Duration in seconds
	Width     int
	Height    int
	FrameRate float64
	FileSize  int64
}

// GetVideoInfo extracts metadata from a video file.
func (p *VideoProcessor) GetVideoInfo(ctx context.Context, videoPath string) (*VideoInfo, error) {
	stat, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("stat video: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	info := &VideoInfo{
		FileSize: stat.Size(),
	}

	type ffprobeFormat struct {
		Duration string `json:"duration"`
	}
	type ffprobeStream struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	}
	type ffprobeOutput struct {
		Format  ffprobeFormat   `json:"format"`
		Streams []ffprobeStream `json:"streams"`
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	if parsed.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			info.Duration = dur
		}
	}

	for _, s := range parsed.Streams {
		if s.CodecType != "video" {
			continue
		}
		if info.Width == 0 && s.Width > 0 {
			info.Width = s.Width
		}
		if info.Height == 0 && s.Height > 0 {
			info.Height = s.Height
		}
		if info.FrameRate == 0 && s.AvgFrameRate != "" && s.AvgFrameRate != "0/0" {
			parts := strings.SplitN(s.AvgFrameRate, "/", 2)
			if len(parts) == 2 {
				num, err1 := strconv.ParseFloat(parts[0], 64)
				den, err2 := strconv.ParseFloat(parts[1], 64)
				if err1 == nil && err2 == nil && den != 0 {
					info.FrameRate = num / den
				}
			}
		}
	}

	return info, nil
}

// ExtractFramesConfig configures frame extraction at explicit timestamps.
type ExtractFramesConfig struct {
	Timestamps []float64 // Seconds into the video, in order
	MaxWidth   int       // Maximum width of extracted frames (default: 1280)
	Quality    int       // JPEG quality 1-31, lower is better (default: 5)
	OutputDir  string    // Directory to save frames
	// OnFrame, if set, is called after each timestamp attempt with the
	// number of frames attempted so far. Failed frames still count.
	OnFrame func(done, total int)
}

// ExtractFrames extracts one frame per timestamp. Timestamps that fail to
// decode (for example past the end of the stream) are skipped rather than
// failing the whole extraction. Returns paths to the extracted frame images
// in timestamp order.
func (p *VideoProcessor) ExtractFrames(ctx context.Context, videoPath string, cfg ExtractFramesConfig) ([]string, error) {
	if len(cfg.Timestamps) == 0 {
		return nil, fmt.Errorf("no timestamps given")
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 1280
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 5
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var frames []string
	for i, timestamp := range cfg.Timestamps {
		select {
		case <-ctx.Done():
			return frames, ctx.Err()
		default:
		}

		outputPath := filepath.Join(cfg.OutputDir, fmt.Sprintf("frame_%03d.jpg", i))

		cmd := exec.CommandContext(ctx, p.ffmpegPath,
			"-i", videoPath,
			// Seek after opening input for better compatibility with some
			// container/codec combinations.
			"-ss", fmt.Sprintf("%.3f", timestamp),
			"-vframes", "1",
			"-vf", fmt.Sprintf("scale='min(%d,iw)':-1", cfg.MaxWidth),
			"-q:v", strconv.Itoa(cfg.Quality),
			"-y",
			outputPath,
		)

		err := cmd.Run()
		if cfg.OnFrame != nil {
			cfg.OnFrame(i+1, len(cfg.Timestamps))
		}
		if err != nil {
			// Skip frames that fail (might be past end of video)
			continue
		}

		if stat, statErr := os.Stat(outputPath); statErr == nil && stat.Size() > 0 {
			frames = append(frames, outputPath)
		}
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames extracted from video")
	}

	return frames, nil
}

// ExtractFrame extracts a single frame at the given timestamp.
func (p *VideoProcessor) ExtractFrame(ctx context.Context, videoPath string, timestamp float64, maxWidth int, outputPath string) error {
	frames, err := p.ExtractFrames(ctx, videoPath, ExtractFramesConfig{
		Timestamps: []float64{timestamp},
		MaxWidth:   maxWidth,
		OutputDir:  filepath.Dir(outputPath),
	})
	if err != nil {
		return err
	}
	if frames[0] != outputPath {
		if err := os.Rename(frames[0], outputPath); err != nil {
			return fmt.Errorf("rename frame: %w", err)
		}
	}
	return nil
}

// IsAvailable checks if ffmpeg is available on the system.
func IsAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	if err != nil {
		return false
	}
	_, err = exec.LookPath("ffprobe")
	return err == nil
}

// GetVersion returns the ffmpeg version string.
func GetVersion() (string, error) {
	cmd := exec.Command("ffmpeg", "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}
