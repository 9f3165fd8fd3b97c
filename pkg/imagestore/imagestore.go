package imagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store persists uploaded scan sheets and their sidecar files on local disk.
type Store struct {
	baseDir string
	logger  zerolog.Logger
}

// New constructs a Store rooted at baseDir.
func New(baseDir string, logger zerolog.Logger) (*Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("media directory must be provided")
	}

	if err := os.MkdirAll(filepath.Join(baseDir, "scans"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	return &Store{
		baseDir: baseDir,
		logger:  logger.With().Str("component", "imagestore").Logger(),
	}, nil
}

// SaveImage writes the uploaded sheet under the exam's scan directory and
// returns its path. The original filename stem is kept as a prefix so that
// embedded student/set hints survive the rename.
func (s *Store) SaveImage(examID uint, originalName string, data []byte) (string, error) {
	dir := filepath.Join(s.baseDir, "scans", fmt.Sprintf("%d", examID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scan directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	stem := sanitizeStem(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	name := fmt.Sprintf("%s__%s%s", stem, uuid.NewString(), ext)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write scan image: %w", err)
	}

	s.logger.Debug().Str("path", path).Msg("scan image stored")

	return path, nil
}

// SaveSidecar writes sidecar JSON next to a previously stored image and
// returns the sidecar path.
func (s *Store) SaveSidecar(imagePath string, data []byte) (string, error) {
	path := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".json"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write sidecar file: %w", err)
	}

	return path, nil
}

func sanitizeStem(stem string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, stem)

	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "sheet"
	}

	return cleaned
}
