// Package repo loads the repository index from configured sources and
// caches the merged result as a local snapshot.
package repo

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/pms/internal/core/ports"
	"go.trai.ch/zerr"
)

// indexDoc is the wire format of a source's packages.json:
// package name -> version -> entry.
type indexDoc map[string]map[string]entryDTO

type entryDTO struct {
	Metadata json.RawMessage `json:"metadata"`
	Filename string          `json:"filename"`
	Hash     string          `json:"hash"`
}

// snapshotDoc is the local cache of the merged index.
type snapshotDoc struct {
	Entries []snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	Manifest domain.Manifest `json:"metadata"`
	Filename string          `json:"filename"`
	Hash     string          `json:"hash"`
	Source   string          `json:"source"`
}

// Loader fetches and caches the repository index. Invalid entries are
// dropped with a warning; a duplicate name and version across sources is
// corruption and fails the whole load.
type Loader struct {
	transport    ports.Transport
	logger       ports.Logger
	sourcesPath  string
	snapshotPath string
}

// NewLoader creates a Loader.
func NewLoader(transport ports.Transport, logger ports.Logger, sourcesPath, snapshotPath string) *Loader {
	return &Loader{
		transport:    transport,
		logger:       logger,
		sourcesPath:  sourcesPath,
		snapshotPath: snapshotPath,
	}
}

// Sources returns the configured source base locations in file order.
// Lines are whitespace-split with the first field taken; '#' starts a
// comment.
func (l *Loader) Sources() ([]string, error) {
	file, err := os.Open(l.sourcesPath) // #nosec G304 -- configured sources file
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("no sources file", "path", l.sourcesPath)
			return nil, nil
		}
		return nil, zerr.With(errors.Join(domain.ErrIndexLoadFailed, err), "path", l.sourcesPath)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		sources = append(sources, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, zerr.With(errors.Join(domain.ErrIndexLoadFailed, err), "path", l.sourcesPath)
	}

	return sources, nil
}

// Update re-downloads every source's index, merges them and rewrites the
// local snapshot.
func (l *Loader) Update(ctx context.Context) (*domain.Index, error) {
	sources, err := l.Sources()
	if err != nil {
		return nil, err
	}

	index := domain.NewIndex()
	var snap snapshotDoc
	for _, source := range sources {
		entries, err := l.fetchSource(ctx, source)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if err := index.Add(e); err != nil {
				return nil, err
			}
			snap.Entries = append(snap.Entries, snapshotEntry{
				Manifest: e.Manifest,
				Filename: e.Filename,
				Hash:     e.Hash.String(),
				Source:   e.Source,
			})
		}
	}

	if err := l.writeSnapshot(&snap); err != nil {
		return nil, err
	}

	return index, nil
}

// Load returns the index from the local snapshot, falling back to a full
// Update when no snapshot exists yet.
func (l *Loader) Load(ctx context.Context) (*domain.Index, error) {
	raw, err := os.ReadFile(l.snapshotPath) // #nosec G304 -- configured cache path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l.Update(ctx)
		}
		return nil, zerr.With(errors.Join(domain.ErrIndexLoadFailed, err), "path", l.snapshotPath)
	}

	var snap snapshotDoc
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, zerr.With(errors.Join(domain.ErrIndexLoadFailed, err), "path", l.snapshotPath)
	}

	index := domain.NewIndex()
	for _, se := range snap.Entries {
		entry, err := se.toEntry()
		if err != nil {
			return nil, zerr.With(errors.Join(domain.ErrIndexLoadFailed, err), "path", l.snapshotPath)
		}
		if err := index.Add(entry); err != nil {
			return nil, err
		}
	}

	return index, nil
}

func (se snapshotEntry) toEntry() (domain.Entry, error) {
	if err := se.Manifest.Validate(); err != nil {
		return domain.Entry{}, err
	}
	hash, err := domain.ParseContentHash(se.Hash)
	if err != nil {
		return domain.Entry{}, err
	}
	return domain.Entry{
		Name:     se.Manifest.Name,
		Version:  se.Manifest.ParsedVersion(),
		Manifest: se.Manifest,
		Filename: se.Filename,
		Hash:     hash,
		Source:   se.Source,
	}, nil
}

func (l *Loader) fetchSource(ctx context.Context, source string) ([]domain.Entry, error) {
	location := strings.TrimSuffix(source, "/") + "/" + domain.IndexFileName
	body, err := l.transport.Get(ctx, location)
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrIndexLoadFailed, err), "source", source)
	}
	defer func() { _ = body.Close() }()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrIndexLoadFailed, err), "source", source)
	}

	var doc indexDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, zerr.With(errors.Join(domain.ErrIndexLoadFailed, err), "source", source)
	}

	var entries []domain.Entry
	for name, versions := range doc {
		for version, dto := range versions {
			entry, err := l.buildEntry(source, name, version, dto)
			if err != nil {
				l.logger.Warn("dropping invalid index entry",
					"source", source, "package", name, "version", version)
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// buildEntry validates one wire entry. The embedded manifest must agree
// with the index keys it is filed under.
func (l *Loader) buildEntry(source, name, version string, dto entryDTO) (domain.Entry, error) {
	manifest, err := domain.ParseManifest(dto.Metadata)
	if err != nil {
		return domain.Entry{}, err
	}
	if manifest.Name != name || manifest.Version != version {
		return domain.Entry{}, zerr.With(
			zerr.With(domain.ErrInvalidManifest, "indexed_as", name+"_"+version),
			"manifest", manifest.Name+"_"+manifest.Version,
		)
	}

	hash, err := domain.ParseContentHash(dto.Hash)
	if err != nil {
		return domain.Entry{}, err
	}

	filename := dto.Filename
	if filename == "" {
		filename = domain.ArchiveFileName(name, version)
	}

	return domain.Entry{
		Name:     name,
		Version:  manifest.ParsedVersion(),
		Manifest: manifest,
		Filename: filename,
		Hash:     hash,
		Source:   source,
	}, nil
}

func (l *Loader) writeSnapshot(snap *snapshotDoc) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode index snapshot")
	}

	dir := filepath.Dir(l.snapshotPath)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create cache directory")
	}

	tmp, err := os.CreateTemp(dir, domain.IndexFileName+".*")
	if err != nil {
		return zerr.Wrap(err, "failed to create snapshot temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to write index snapshot")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to write index snapshot")
	}
	if err := os.Rename(tmpName, l.snapshotPath); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to replace index snapshot")
	}

	return nil
}

// Clean removes the local snapshot. The next Load performs a full Update.
func (l *Loader) Clean() error {
	if err := os.Remove(l.snapshotPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.Wrap(err, "failed to remove index snapshot")
	}
	return nil
}
