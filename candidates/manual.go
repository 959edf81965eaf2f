package candidates

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/utils"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const MaxUploadSizeBytes int64 = 5 * 1024 * 1024

// DataURLFromUpload embeds an uploaded image as a data: URL. Raster images
// must decode; SVG is accepted by extension and content sniffing.
func DataURLFromUpload(name string, data []byte) (string, error) {
	if int64(len(data)) > MaxUploadSizeBytes {
		return "", ErrUploadTooLarge
	}
	if len(data) == 0 {
		return "", ErrNotAnImage
	}

	mimeType := http.DetectContentType(data)
	switch {
	case isSVG(name, data):
		mimeType = "image/svg+xml"
	case strings.HasPrefix(mimeType, "image/"):
		if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
			return "", ErrNotAnImage
		}
	default:
		return "", ErrNotAnImage
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func isSVG(name string, data []byte) bool {
	if !strings.EqualFold(filepath.Ext(name), ".svg") {
		return false
	}
	return bytes.Contains(bytes.ToLower(data), []byte("<svg"))
}

// ValidatePastedURL accepts pasted text only if it is an absolute URL.
func ValidatePastedURL(text string) (string, error) {
	text = strings.TrimSpace(text)
	if !utils.IsAbsoluteURL(text) {
		return "", ErrInvalidPastedURL
	}
	return text, nil
}
