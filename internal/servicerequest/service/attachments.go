package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/smallbiznis/mutrapro/internal/config"
	"github.com/smallbiznis/mutrapro/internal/servicerequest/domain"
)

// DiskAttachments keeps uploaded artifacts in a flat directory.
type DiskAttachments struct {
	dir string
}

func NewDiskAttachments(dir string) *DiskAttachments {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "uploads"
	}
	return &DiskAttachments{dir: dir}
}

func ProvideAttachments(cfg config.Config) domain.AttachmentStore {
	return NewDiskAttachments(cfg.UploadsDir)
}

func (d *DiskAttachments) Save(ctx context.Context, name string, body io.Reader) (string, error) {
	path, err := d.path(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create attachment: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close attachment: %w", err)
	}
	return name, nil
}

func (d *DiskAttachments) Remove(_ context.Context, name string) error {
	path, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (d *DiskAttachments) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", domain.ErrInvalidAttachment
	}
	return filepath.Join(d.dir, name), nil
}
