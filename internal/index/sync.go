package index

import (
	"log/slog"
	"time"

	"github.com/starford/gebo/internal/checksum"
	"github.com/starford/gebo/internal/parser"
	"github.com/starford/gebo/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path), slog.String("checksum", checksum.Short(data)))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses data and upserts it into the DB. Callers hand it freshly
// persisted content after a merge so backlink lookups stay current.
func IndexFile(db *DB, path string, data []byte) error {
	res, err := parser.Parse(path, data)
	if err != nil {
		return err
	}

	row := NoteRow{
		Path:       path,
		Identifier: res.Identifier,
		Title:      res.Title,
		Flavor:     string(res.Flavor),
		Checksum:   checksum.Sum(data),
		Tags:       res.Tags,
		UpdatedAt:  time.Now().UTC(),
	}
	return db.UpsertNote(row, res.Body, res.Links)
}
