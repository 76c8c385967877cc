package storage

// Storage is an interface for a generic blobstore.  The builder uses
// it to persist run summaries between invocations.
type Storage interface {
	Get([]byte) ([]byte, error)
	Put([]byte, []byte) error
	Del([]byte) error

	Close() error
}
