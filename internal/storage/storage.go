package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
)

// ThumbWidth is the maximum width of stored cover thumbnails.
const ThumbWidth = 300

var (
	ErrBadName  = errors.New("storage: invalid object name")
	ErrNotImage = errors.New("storage: not a decodable image")
)

// Store saves an object and returns the URL it is served from.
type Store interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
}

var safeName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// LocalStore writes objects under Dir and serves them below BaseURL.
type LocalStore struct {
	Dir     string
	BaseURL string
}

func (s *LocalStore) Store(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !safeName.MatchString(name) || strings.Contains(name, "..") {
		return "", ErrBadName
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return "", err
	}
	return strings.TrimRight(s.BaseURL, "/") + "/" + name, nil
}

// Cover holds the URLs of a stored cover and its thumbnail.
type Cover struct {
	URL      string `json:"url"`
	ThumbURL string `json:"thumb_url"`
}

// SaveCover decodes an uploaded image and stores it as JPEG together with a
// thumbnail no wider than ThumbWidth.
func SaveCover(ctx context.Context, st Store, base string, data []byte) (Cover, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Cover{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	var orig bytes.Buffer
	if err := imaging.Encode(&orig, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return Cover{}, err
	}
	thumb := img
	if img.Bounds().Dx() > ThumbWidth {
		thumb = imaging.Resize(img, ThumbWidth, 0, imaging.Lanczos)
	}
	var small bytes.Buffer
	if err := imaging.Encode(&small, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return Cover{}, err
	}

	url, err := st.Store(ctx, base+".jpg", orig.Bytes())
	if err != nil {
		return Cover{}, err
	}
	thumbURL, err := st.Store(ctx, base+"_thumb.jpg", small.Bytes())
	if err != nil {
		return Cover{}, err
	}
	return Cover{URL: url, ThumbURL: thumbURL}, nil
}
