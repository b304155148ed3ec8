package index

// BulletIndex is the write side of the index that Sync and Watch keep in
// step with the data directory. *DB is the SQLite implementation.
type BulletIndex interface {
	UpsertDocument(doc DocumentRow, bullets []BulletRow) error
	DeleteDocument(key string) error
	GetChecksum(key string) (string, error)
	AllChecksums() (map[string]string, error)
}

var _ BulletIndex = (*DB)(nil)
