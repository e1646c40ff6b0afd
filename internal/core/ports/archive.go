package ports

// Archiver unpacks package archives into a staging directory.
//
//go:generate mockgen -source=archive.go -destination=mocks/mock_archive.go -package=mocks
type Archiver interface {
	// Extract unpacks the tar.gz archive at path into dest, creating dest
	// if needed. Entries escaping dest are rejected.
	Extract(path, dest string) error
}
