package vectorstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// chromem stores each collection in a directory named by the first 8 hex
// characters of the SHA-256 of its name. 00000000.gob holds the metadata.
var collectionDirPattern = regexp.MustCompile(`^[a-f0-9]{8}$`)

const collectionMetadataFile = "00000000.gob"

// openChromemDB opens a persistent chromem DB. A collection directory left
// without its metadata file (an interrupted first write) makes chromem refuse
// to load; such directories are moved to .quarantine and the load retried.
func openChromemDB(path string, compress bool, logger *zap.Logger) (*chromem.DB, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err == nil {
		return db, nil
	}
	if !strings.Contains(err.Error(), "collection metadata file not found") {
		return nil, err
	}

	corrupt, findErr := findCorruptCollections(path, logger)
	if findErr != nil || len(corrupt) == 0 {
		return nil, err
	}

	quarantine := filepath.Join(path, ".quarantine")
	if mkErr := os.MkdirAll(quarantine, 0o755); mkErr != nil {
		return nil, fmt.Errorf("creating quarantine directory: %w", mkErr)
	}
	for _, dir := range corrupt {
		src := filepath.Join(path, dir)
		dst := filepath.Join(quarantine, dir)
		logger.Warn("quarantining corrupt collection",
			zap.String("from", src),
			zap.String("to", dst))
		if mvErr := os.Rename(src, dst); mvErr != nil {
			logger.Error("failed to quarantine collection", zap.String("dir", dir), zap.Error(mvErr))
		}
	}

	db, err = chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, err
	}
	logger.Info("chromem DB loaded after quarantine", zap.Int("quarantined", len(corrupt)))
	return db, nil
}

// findCorruptCollections lists collection directories that hold documents
// but no metadata file.
func findCorruptCollections(path string, logger *zap.Logger) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var corrupt []string
	for _, entry := range entries {
		if !entry.IsDir() || !collectionDirPattern.MatchString(entry.Name()) {
			continue
		}

		dir := filepath.Join(path, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, collectionMetadataFile)); !os.IsNotExist(err) {
			continue
		}

		files, err := os.ReadDir(dir)
		if err != nil {
			logger.Warn("failed to read collection directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		for _, f := range files {
			if !f.IsDir() && strings.HasSuffix(f.Name(), ".gob") {
				corrupt = append(corrupt, entry.Name())
				break
			}
		}
	}
	return corrupt, nil
}
