package h264encoder

import "errors"

var (
	// ErrNotInitialized is returned when encoder methods are called before Begin.
	ErrNotInitialized = errors.New("h264encoder: encoder not initialized")

	// ErrAlreadyStarted is returned when Begin is called twice without End.
	ErrAlreadyStarted = errors.New("h264encoder: encoder already started")

	// ErrEncodingFailed is returned when ffmpeg fails or its output is unusable.
	ErrEncodingFailed = errors.New("h264encoder: encoding failed")

	// ErrNoFrames is returned when trying to build an MP4 with no frames.
	ErrNoFrames = errors.New("h264encoder: no frames to encode")

	// ErrFFmpegNotFound is returned when no ffmpeg binary can be located.
	ErrFFmpegNotFound = errors.New("h264encoder: ffmpeg not found")
)
