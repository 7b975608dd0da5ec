// Package storage stores recipe images as objects in a bucket on an afero
// filesystem and builds their public URLs.
package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"recipebox/internal/config"
	"recipebox/internal/middleware"
	"recipebox/internal/models"
	"recipebox/internal/observability"

	"github.com/chai2010/webp"
	"github.com/spf13/afero"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	// DefaultBucket holds every recipe image.
	DefaultBucket = "recipes"
	// ImageFolder is the folder inside the bucket for uploaded images.
	ImageFolder = "recipe-images"
	// ThumbnailMaxSize bounds the longer side of generated thumbnails.
	ThumbnailMaxSize = 640
	// ThumbnailSuffix is appended to an object's name for its thumbnail.
	ThumbnailSuffix = ".thumb.webp"

	webpQuality = 70
)

// Object is a stored file: its path inside the bucket and its public URL.
type Object struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Store is an object bucket rooted on an afero filesystem.
type Store struct {
	fs            afero.Fs
	bucket        string
	publicBaseURL string
	maxBytes      int64
}

// Options configure a Store.
type Options struct {
	Bucket        string
	PublicBaseURL string
	MaxUploadMB   int
}

// New returns a Store writing objects to <bucket>/<path> on fs.
func New(fs afero.Fs, opts Options) *Store {
	bucket := strings.Trim(opts.Bucket, "/")
	if bucket == "" {
		bucket = DefaultBucket
	}
	maxMB := opts.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 10
	}
	return &Store{
		fs:            fs,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		maxBytes:      int64(maxMB) * 1024 * 1024,
	}
}

// NewFromConfig returns a Store on the OS filesystem under STORAGE_ROOT.
func NewFromConfig(cfg *config.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.StorageRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	fs := afero.NewBasePathFs(afero.NewOsFs(), cfg.StorageRoot)
	return New(fs, Options{
		Bucket:        cfg.StorageBucket,
		PublicBaseURL: cfg.PublicBaseURL + "/storage",
		MaxUploadMB:   cfg.ImageMaxUploadSizeMB,
	}), nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// BucketFS returns a filesystem rooted at the bucket, for static serving.
func (s *Store) BucketFS() afero.Fs {
	return afero.NewReadOnlyFs(afero.NewBasePathFs(s.fs, "/"+s.bucket))
}

// URL returns the public URL of the object at p.
func (s *Store) URL(p string) string {
	return s.publicBaseURL + "/" + s.bucket + "/" + strings.TrimLeft(p, "/")
}

// Upload validates content as an image and writes it under the image folder
// with a random name that keeps the original extension. A webp thumbnail is
// written next to it when the image decodes.
func (s *Store) Upload(ctx context.Context, filename string, content []byte) (*Object, error) {
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
	}
	if !isAllowedImageMIME(http.DetectContentType(content)) {
		observability.ImageUploads.WithLabelValues("rejected").Inc()
		return nil, models.NewValidationError("Invalid image type")
	}

	name, err := randomName()
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	objectPath := path.Join(ImageFolder, name+extensionOf(filename))

	if err := s.write(objectPath, content); err != nil {
		observability.ImageUploads.WithLabelValues("error").Inc()
		return nil, models.NewInternalError(err)
	}

	if thumb, err := thumbnail(content); err == nil {
		if err := s.write(objectPath+ThumbnailSuffix, thumb); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to write thumbnail", "path", objectPath, "error", err)
		}
	} else {
		middleware.Logger.DebugContext(ctx, "skipping thumbnail", "path", objectPath, "error", err)
	}

	observability.ImageUploads.WithLabelValues("stored").Inc()
	return &Object{Path: objectPath, URL: s.URL(objectPath)}, nil
}

// Delete removes the object at p and its thumbnail. A missing object is not an error.
func (s *Store) Delete(_ context.Context, p string) error {
	p = strings.TrimLeft(p, "/")
	if p == "" || strings.Contains(p, "..") {
		return models.NewValidationError("Invalid object path")
	}
	for _, target := range []string{p, p + ThumbnailSuffix} {
		if err := s.fs.Remove(s.fullPath(target)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Exists reports whether an object is stored at p.
func (s *Store) Exists(p string) (bool, error) {
	return afero.Exists(s.fs, s.fullPath(p))
}

// PathFromURL recovers "<folder>/<file>" from a public URL, for rows written
// before the path was stored explicitly.
func PathFromURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	}
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[len(parts)-2:], "/")
}

func (s *Store) fullPath(p string) string {
	return path.Join("/", s.bucket, p)
}

func (s *Store) write(p string, data []byte) error {
	full := s.fullPath(p)
	if err := s.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, full, data, 0o644)
}

func randomName() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func extensionOf(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || ext == "." {
		return ".bin"
	}
	return ext
}

func isAllowedImageMIME(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func thumbnail(content []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, resizeToFit(src, ThumbnailMaxSize), &webp.Options{Quality: webpQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resizeToFit(src image.Image, maxSide int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || (w <= maxSide && h <= maxSide) {
		return src
	}

	scale := float64(maxSide) / float64(w)
	if hs := float64(maxSide) / float64(h); hs < scale {
		scale = hs
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}
