package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage persists export files on disk and serves them through signed tokens.
type LocalStorage struct {
	baseDir        string
	signer         *SignedURLSigner
	downloadPrefix string
}

// NewLocalStorage ensures the base directory exists and returns a handle. Download
// URLs are rendered as <downloadPrefix>/<token>.
func NewLocalStorage(baseDir string, signer *SignedURLSigner, downloadPrefix string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create exports directory: %w", err)
	}
	return &LocalStorage{
		baseDir:        baseDir,
		signer:         signer,
		downloadPrefix: strings.TrimRight(downloadPrefix, "/"),
	}, nil
}

// Put writes data under key.
func (s *LocalStorage) Put(_ context.Context, key, _ string, data []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// DownloadURL signs key and returns a relative download URL.
func (s *LocalStorage) DownloadURL(_ context.Context, key string) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Sign(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign export url: %w", err)
	}
	return s.downloadPrefix + "/" + token, expiresAt, nil
}

// OpenSigned verifies token and opens the file it points to.
func (s *LocalStorage) OpenSigned(_ context.Context, token string) (io.ReadCloser, string, error) {
	key, err := s.signer.Verify(token)
	if err != nil {
		return nil, "", err
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open export file: %w", err)
	}
	return file, key, nil
}

// CleanupOlderThan removes files older than ttl and returns the removed keys.
func (s *LocalStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	deleted := make([]string, 0)
	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			rel = path
		}
		deleted = append(deleted, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup exports: %w", err)
	}
	return deleted, nil
}

func (s *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid export key %q", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}
