package bolt

const snapshotBucket = "snapshots"

// SnapshotCache is a process-wide, read-through cache for the mapping
// registry and constraint catalog's decoded text (spec §9: "may be cached
// in a process-wide value with an invalidation hook"). A miss always falls
// back to the codec; a successful Fetch refreshes the cache; a mutation
// invalidates it by overwriting the stored snapshot.
type SnapshotCache struct {
	db *DB
}

// OpenSnapshotCache opens (creating if needed) a bbolt file at path for
// caching mapping-registry and constraint-catalog snapshots.
func OpenSnapshotCache(path string) (*SnapshotCache, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.CreateBucket(snapshotBucket); err != nil {
		return nil, err
	}
	return &SnapshotCache{db: db}, nil
}

// Get returns the cached text for key and whether it was present.
func (c *SnapshotCache) Get(key string) (string, bool) {
	var text string
	if err := c.db.GetJSON(snapshotBucket, key, &text); err != nil {
		return "", false
	}
	return text, true
}

// Put stores (or overwrites) the cached text for key.
func (c *SnapshotCache) Put(key, text string) error {
	return c.db.PutJSON(snapshotBucket, key, text)
}

// Invalidate drops key from the cache, forcing the next Get to miss.
func (c *SnapshotCache) Invalidate(key string) error {
	return c.db.Delete(snapshotBucket, key)
}

func (c *SnapshotCache) Close() error {
	return c.db.Close()
}
