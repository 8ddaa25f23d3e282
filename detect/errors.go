package detect

import "errors"

var (
	ErrFileNotFound      = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoBackend         = errors.New("model backend unavailable")
	ErrVideoOpen         = errors.New("cannot open video file")
	ErrNoFrames          = errors.New("no frames analyzed")
	ErrNoObjects         = errors.New("no objects detected in video")
)
