package ports

// Logger defines the interface for logging. Quiet mode suppresses progress
// output (Info, Warn) but never terminal errors.
//
//go:generate mockgen -source=logger.go -destination=mocks/mock_logger.go -package=mocks
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(err error)

	// SetQuiet toggles suppression of non-error output.
	SetQuiet(quiet bool)
}
