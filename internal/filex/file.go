// Package filex reads local files the CLI uploads.
package filex

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// MaxImageSize caps profile image uploads.
const MaxImageSize = 5 << 20

var ErrNotImage = errors.New("file is not an image")

// ReadImage reads an image file no larger than maxSize and sniffs its
// content type.
func ReadImage(path string, maxSize int64) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(data)) > maxSize {
		return nil, "", fmt.Errorf("%s is larger than %d bytes", path, maxSize)
	}

	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return nil, "", fmt.Errorf("%s: %w (%s)", path, ErrNotImage, ct)
	}
	return data, ct, nil
}
