package inspector

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidFormat   = errors.New("invalid export format")
	ErrExportFailed    = errors.New("export failed")

	// ErrNoData is returned when an exporter is handed a nil session or machine.
	ErrNoData = errors.New("no data to export")
)
