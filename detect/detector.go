package detect

import (
	"context"
	"os"
	"strings"

	"github.com/h2non/filetype"

	"exhibit/utils"
)

// Detector analyzes one evidence file and always returns an envelope. Errors
// never escape a detector: every failure is folded into an error-typed
// envelope so callers persist exactly one record per submission.
type Detector interface {
	Kind() Kind
	Detect(ctx context.Context, path string) Envelope
}

var (
	imageExtensions = map[string]bool{
		"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true, "webp": true,
	}
	videoExtensions = map[string]bool{
		"mp4": true, "avi": true, "mov": true, "mkv": true, "flv": true, "wmv": true,
	}
)

func isImagePath(path string) bool {
	return imageExtensions[utils.Extension(path)]
}

func isVideoPath(path string) bool {
	return videoExtensions[utils.Extension(path)]
}

// SniffMIME reads the file's magic bytes and returns the detected MIME type,
// or the empty string when the content matches no known signature.
func SniffMIME(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	head := make([]byte, 262)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return ""
	}
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

// verifyImageContent rejects files whose magic bytes contradict an image
// extension. Extensionless or unrecognized content is left to the decoder.
func verifyImageContent(path string) bool {
	mime := SniffMIME(path)
	if mime == "" {
		return true
	}
	return strings.HasPrefix(mime, "image/")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
