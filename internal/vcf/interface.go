package vcf

import "github.com/broadinstitute/picard-sub013/internal/variant"

// Source is the interface for readers that produce decoded variant records.
type Source interface {
	// Next reads the next record.
	// Returns nil, nil when there are no more records.
	Next() (*variant.Context, error)

	// Header returns the parsed header of the stream.
	Header() *Header

	// Close closes the reader and releases resources.
	Close() error

	// RecordNumber returns the 1-based number of the last record started.
	RecordNumber() int
}
