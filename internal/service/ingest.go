package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"whatsview/internal/security"
)

// IngestDirectory feeds every .json file in dir through the normalizer, in
// lexical filename order. A file that cannot be read or parsed is logged
// and skipped; the rest of the batch continues. Re-running over the same
// directory is a no-op thanks to the insert-only upsert keys.
func (n *Normalizer) IngestDirectory(ctx context.Context, dir string) (Report, error) {
	var report Report

	if err := security.ValidatePath(dir); err != nil {
		return report, fmt.Errorf("invalid payload directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return report, fmt.Errorf("failed to read payload directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path) // #nosec G304 - directory validated above
		if err != nil {
			n.logger.WithError(err).WithField(LogFieldFile, entry.Name()).Warn("Failed to read payload file, skipping")
			report.PayloadsSkipped++
			continue
		}

		fileReport := n.ProcessPayload(ctx, raw)
		n.logger.WithField(LogFieldFile, entry.Name()).WithFields(fileReport.Fields()).Info("Payload file processed")
		report.merge(fileReport)

		if ctx.Err() != nil {
			return report, ctx.Err()
		}
	}

	return report, nil
}
