package save

import (
	"fmt"

	"github.com/lawnchairsociety/questgraph/internal/logger"
)

// ListingStore is a ByteStore that can enumerate its names
type ListingStore interface {
	ByteStore
	Lister
}

// CopyResult counts what CopyAll did
type CopyResult struct {
	Copied  int
	Skipped int
}

// CopyAll copies every file of src into dst. A destination file that
// already has contents is kept unless overwrite is set. With dryRun
// nothing is written.
func CopyAll(dst ByteStore, src ListingStore, overwrite, dryRun bool) (CopyResult, error) {
	var result CopyResult

	names, err := src.List()
	if err != nil {
		return result, fmt.Errorf("failed to list source: %w", err)
	}

	// Read materializes missing names, so only probe names dst already has
	var present map[string]bool
	if l, ok := dst.(Lister); ok && !overwrite {
		existing, err := l.List()
		if err != nil {
			return result, fmt.Errorf("failed to list destination: %w", err)
		}
		present = make(map[string]bool, len(existing))
		for _, name := range existing {
			present[name] = true
		}
	}

	for _, name := range names {
		contents, err := src.Read(name)
		if err != nil {
			return result, fmt.Errorf("failed to read %s: %w", name, err)
		}

		if !overwrite && (present == nil || present[name]) {
			existing, err := dst.Read(name)
			if err != nil {
				return result, fmt.Errorf("failed to check %s: %w", name, err)
			}
			if existing != "" {
				logger.Info("Save file already present, skipping", "name", name)
				result.Skipped++
				continue
			}
		}

		if !dryRun {
			if err := dst.Write(name, contents); err != nil {
				return result, fmt.Errorf("failed to write %s: %w", name, err)
			}
		}
		logger.Debug("Save file copied", "name", name, "bytes", len(contents), "dry_run", dryRun)
		result.Copied++
	}
	return result, nil
}
