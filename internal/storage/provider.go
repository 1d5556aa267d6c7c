// Package storage provides flat blob storage on the local filesystem or S3.
// Components get a prefix-scoped Provider so several stores can share one
// backend without colliding.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Read when the object does not exist.
var ErrNotFound = errors.New("object not found")

// Provider stores opaque blobs under slash-separated paths.
type Provider interface {
	// Read returns the object's content or an error wrapping ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write creates or replaces the object.
	Write(ctx context.Context, path string, data []byte) error

	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, path string) error

	// List returns the paths of every object under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// LocalProvider keeps objects as files below a base directory.
type LocalProvider struct {
	baseDir string
}

// NewLocalProvider creates a provider rooted at baseDir.
func NewLocalProvider(baseDir string) *LocalProvider {
	return &LocalProvider{baseDir: baseDir}
}

func (p *LocalProvider) Read(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(p.fullPath(path)) //nolint:gosec // G304: paths are built by the stores, not callers
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return data, err
}

func (p *LocalProvider) Write(_ context.Context, path string, data []byte) error {
	fullPath := p.fullPath(path)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Write to a temp file and rename so a crash never leaves a torn blob.
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), fullPath)
}

func (p *LocalProvider) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(p.fullPath(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (p *LocalProvider) Delete(_ context.Context, path string) error {
	err := os.Remove(p.fullPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (p *LocalProvider) List(_ context.Context, prefix string) ([]string, error) {
	var result []string
	err := filepath.WalkDir(p.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}

		rel, err := filepath.Rel(p.baseDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			result = append(result, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *LocalProvider) fullPath(path string) string {
	return filepath.Join(p.baseDir, filepath.FromSlash(path))
}

// S3Provider keeps objects in a bucket, optionally below a key prefix.
type S3Provider struct {
	bucket string
	prefix string
	client S3Client
}

// NewS3Provider creates a provider for bucket. prefix may be empty.
func NewS3Provider(bucket, prefix string, client S3Client) *S3Provider {
	return &S3Provider{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		client: client,
	}
}

func (p *S3Provider) Read(ctx context.Context, path string) ([]byte, error) {
	return p.client.GetObject(ctx, p.bucket, p.key(path))
}

func (p *S3Provider) Write(ctx context.Context, path string, data []byte) error {
	return p.client.PutObject(ctx, p.bucket, p.key(path), data)
}

// Exists returns (false, nil) only when S3 reports the key as missing.
func (p *S3Provider) Exists(ctx context.Context, path string) (bool, error) {
	err := p.client.HeadObject(ctx, p.bucket, p.key(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (p *S3Provider) Delete(ctx context.Context, path string) error {
	return p.client.DeleteObject(ctx, p.bucket, p.key(path))
}

func (p *S3Provider) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := p.client.ListObjects(ctx, p.bucket, p.key(prefix))
	if err != nil {
		return nil, err
	}

	root := p.key("")
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		if rel := strings.TrimPrefix(key, root); rel != "" {
			result = append(result, rel)
		}
	}
	return result, nil
}

func (p *S3Provider) key(path string) string {
	if p.prefix == "" {
		return path
	}
	return p.prefix + "/" + path
}

// PrefixedProvider scopes another provider to a namespace.
type PrefixedProvider struct {
	provider Provider
	prefix   string
}

// NewPrefixedProvider wraps provider so every path lives under prefix.
func NewPrefixedProvider(provider Provider, prefix string) *PrefixedProvider {
	return &PrefixedProvider{provider: provider, prefix: strings.Trim(prefix, "/")}
}

func (p *PrefixedProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return p.provider.Read(ctx, p.path(path))
}

func (p *PrefixedProvider) Write(ctx context.Context, path string, data []byte) error {
	return p.provider.Write(ctx, p.path(path), data)
}

func (p *PrefixedProvider) Exists(ctx context.Context, path string) (bool, error) {
	return p.provider.Exists(ctx, p.path(path))
}

func (p *PrefixedProvider) Delete(ctx context.Context, path string) error {
	return p.provider.Delete(ctx, p.path(path))
}

func (p *PrefixedProvider) List(ctx context.Context, prefix string) ([]string, error) {
	files, err := p.provider.List(ctx, p.path(prefix))
	if err != nil {
		return nil, err
	}

	root := p.path("")
	result := make([]string, 0, len(files))
	for _, file := range files {
		if rel := strings.TrimPrefix(file, root); rel != "" {
			result = append(result, rel)
		}
	}
	return result, nil
}

func (p *PrefixedProvider) path(path string) string {
	if p.prefix == "" {
		return path
	}
	return p.prefix + "/" + path
}
