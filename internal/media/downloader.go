package media

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"catalog/internal/logger"
)

const (
	downloadTimeout = 30 * time.Second
	maxNameLength   = 100
	maxImageBytes   = 32 << 20
)

// ErrImageTooLarge is returned when an image body exceeds the size cap.
var ErrImageTooLarge = errors.New("image exceeds size limit")

var allowedExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "svg": true,
}

var contentTypeExtensions = map[string]string{
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

// Target names the file an image is stored as.
type Target struct {
	ProductID string
	// Name is the already slugified image name, may be empty.
	Name string
	// Identifier disambiguates images with the same name, usually the remote image id.
	Identifier string
}

type Stored struct {
	Disk string
	Path string
	URL  string
}

// Downloader fetches remote images and hands them to a Store.
type Downloader struct {
	client   *http.Client
	store    Store
	logger   *logger.Logger
	maxBytes int64
}

func NewDownloader(store Store, logger *logger.Logger) *Downloader {
	return &Downloader{
		client:   &http.Client{Timeout: downloadTimeout},
		store:    store,
		logger:   logger,
		maxBytes: maxImageBytes,
	}
}

// Download fetches src and stores it under products/<product id>/.
func (d *Downloader) Download(ctx context.Context, src string, target Target) (*Stored, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image download failed: %d - %s", resp.StatusCode, src)
	}

	if resp.ContentLength > d.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes - %s", ErrImageTooLarge, resp.ContentLength, src)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(body)) > d.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes - %s", ErrImageTooLarge, d.maxBytes, src)
	}

	contentType := resp.Header.Get("Content-Type")
	ext := Extension(src, contentType)
	filePath := path.Join("products", target.ProductID, Filename(src, target.Name, target.Identifier, ext))
	if contentType == "" {
		contentType = mime.TypeByExtension("." + ext)
	}

	disk, publicURL, err := d.store.Put(ctx, filePath, contentType, body)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("Stored image %s as %s:%s", src, disk, filePath)
	return &Stored{Disk: disk, Path: filePath, URL: publicURL}, nil
}

// Extension picks the file extension from the URL path, then from the
// response content type, defaulting to jpg.
func Extension(src, contentType string) string {
	if u, err := url.Parse(src); err == nil {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
		if allowedExtensions[ext] {
			return ext
		}
	}

	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := contentTypeExtensions[strings.ToLower(mediaType)]; ok {
			return ext
		}
	}
	return "jpg"
}

// Filename builds "<name>-<identifier>.<ext>", using a hash of src instead of
// the name when the name is empty or too long.
func Filename(src, name, identifier, ext string) string {
	base := name
	if base == "" || len(base) > maxNameLength {
		sum := md5.Sum([]byte(src))
		base = hex.EncodeToString(sum[:])[:12]
	}
	if identifier != "" {
		base += "-" + identifier
	}
	return base + "." + ext
}
