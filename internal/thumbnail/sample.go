package thumbnail

// SampleWindow computes the sampling window for a video: the whole clip when
// it fits, otherwise a centered window.
func SampleWindow(duration float64, windowSeconds int) (start, window float64) {
	window = float64(windowSeconds)
	if duration <= window {
		return 0, duration
	}
	return (duration - window) / 2, window
}

// SampleTimestamps returns the frame sampling timestamps for a video:
// sampleRate frames per second over the window, capped at maxFrames, spread
// evenly.
func SampleTimestamps(duration float64, windowSeconds, sampleRate, maxFrames int) []float64 {
	if duration <= 0 {
		return []float64{0}
	}

	start, window := SampleWindow(duration, windowSeconds)

	count := int(window * float64(sampleRate))
	if count > maxFrames {
		count = maxFrames
	}
	if count < 1 {
		count = 1
	}

	step := window / float64(count)
	timestamps := make([]float64, count)
	for i := range timestamps {
		timestamps[i] = start + float64(i)*step
	}
	return timestamps
}
