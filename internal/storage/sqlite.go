package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/internal/vector"
)

// DefaultFileName is the backing file created inside the store directory.
const DefaultFileName = "faq.sqlite3"

// Repair kinds reported to the repair hook.
const (
	RepairLegacyQuarantine  = "legacy_quarantine"
	RepairConfig            = "config_repair"
	RepairCorruptQuarantine = "corrupt_quarantine"
)

// SQLiteStore implements Store using SQLite. Vectors are stored as sqlite-vec float32 blobs;
// nearest-neighbor queries are served from a per-collection in-memory index that is
// rebuilt lazily after every write.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	logger   *zap.Logger
	hotIndex bool

	mu   sync.Mutex
	hot  map[string]*hotCollection
	gens map[string]uint64
}

type hotCollection struct {
	index   vector.VectorIndex
	entries map[string]models.CacheEntry
}

// Option configures a SQLiteStore.
type Option func(*options)

type options struct {
	fileName     string
	logger       *zap.Logger
	legacyCheck  bool
	hotIndex     bool
	onRepair     func(kind string)
	retryOnShape bool
}

// WithLogger sets the logger for repair and quarantine messages.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFileName overrides the backing file name.
func WithFileName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.fileName = name
		}
	}
}

// WithLegacyCheck enables or disables the scan for the incompatible legacy config shape.
func WithLegacyCheck(enabled bool) Option {
	return func(o *options) { o.legacyCheck = enabled }
}

// WithHotIndex selects the in-memory index (true, default) or SQL distance scans for queries.
func WithHotIndex(enabled bool) Option {
	return func(o *options) { o.hotIndex = enabled }
}

// WithRepairHook registers a callback invoked for every repair or quarantine performed on open.
func WithRepairHook(fn func(kind string)) Option {
	return func(o *options) {
		if fn != nil {
			o.onRepair = fn
		}
	}
}

// Open opens or creates the store in dir. Before opening it quarantines a legacy-format
// file, repairs malformed collection configs (best effort), and if the open still fails
// with a configuration-shape error it quarantines the file and retries exactly once.
func Open(ctx context.Context, dir string, opts ...Option) (*SQLiteStore, error) {
	o := options{
		fileName:     DefaultFileName,
		logger:       zap.NewNop(),
		legacyCheck:  true,
		hotIndex:     true,
		onRepair:     func(string) {},
		retryOnShape: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to create store directory")
	}
	path := filepath.Join(dir, o.fileName)
	logger := o.logger.With(zap.String("path", path))

	if o.legacyCheck && hasLegacyConfig(path) {
		backup, err := quarantine(path, "incompatible_backup")
		if err != nil {
			return nil, cacheerr.Wrap(err, cacheerr.CodeStoreCorrupt, "failed to quarantine legacy store")
		}
		o.onRepair(RepairLegacyQuarantine)
		logger.Warn("quarantined store with incompatible legacy configuration", zap.String("backup", backup))
	}

	if n, err := repairConfigs(path, logger); err != nil {
		logger.Warn("collection config repair failed", zap.Error(err))
	} else if n > 0 {
		o.onRepair(RepairConfig)
		logger.Info("repaired collection configs", zap.Int("count", n))
	}

	db, err := openDB(ctx, path)
	if err != nil && o.retryOnShape && isShapeError(err) {
		logger.Warn("store open failed, quarantining and retrying", zap.Error(err))
		backup, qerr := quarantine(path, "backup")
		if qerr != nil {
			return nil, cacheerr.Wrap(qerr, cacheerr.CodeStoreCorrupt, "failed to quarantine corrupt store")
		}
		o.onRepair(RepairCorruptQuarantine)
		logger.Warn("quarantined corrupt store", zap.String("backup", backup))
		db, err = openDB(ctx, path)
	}
	if err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeStoreCorrupt, "failed to open store", cacheerr.Field("path", path))
	}

	return &SQLiteStore{
		db:       db,
		path:     path,
		logger:   o.logger,
		hotIndex: o.hotIndex,
		hot:      make(map[string]*hotCollection),
		gens:     make(map[string]uint64),
	}, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := validateConfigs(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		dimension INTEGER,
		vectorizer_version TEXT NOT NULL DEFAULT '',
		config_json TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT NOT NULL,
		collection_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		vector BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection_id, id),
		FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_entries_collection_seq ON entries(collection_id, seq);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func validateConfigs(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT name, config_json FROM collections`)
	if err != nil {
		return fmt.Errorf("failed to read collection configs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return fmt.Errorf("failed to scan collection config: %w", err)
		}
		if err := validateConfig(raw); err != nil {
			return fmt.Errorf("collection %s: %w", name, err)
		}
	}
	return rows.Err()
}

// Path returns the backing file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// HotIndex reports whether queries are answered from the in-memory index.
func (s *SQLiteStore) HotIndex() bool {
	return s.hotIndex
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	for name, h := range s.hot {
		_ = h.index.Close()
		delete(s.hot, name)
	}
	s.mu.Unlock()
	return s.db.Close()
}

// GetOrCreate returns the named collection, creating it with the given vectorizer version if absent.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, name, vectorizerVersion string) (*models.Collection, error) {
	if name == "" {
		return nil, cacheerr.New(cacheerr.CodeInvalidInput, "collection name cannot be empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (name, vectorizer_version, config_json, created_at)
		 VALUES (?, ?, ?, ?)`,
		name, vectorizerVersion, defaultConfigJSON(), time.Now(),
	)
	if err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to create collection", cacheerr.FieldCollection(name))
	}
	return s.Get(ctx, name)
}

// Get returns the named collection or a not-found error.
func (s *SQLiteStore) Get(ctx context.Context, name string) (*models.Collection, error) {
	c, _, err := s.getCollection(ctx, s.db, name)
	return c, err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) getCollection(ctx context.Context, q queryer, name string) (*models.Collection, int64, error) {
	var (
		c   models.Collection
		id  int64
		dim sql.NullInt64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, name, dimension, vectorizer_version, created_at FROM collections WHERE name = ?`, name,
	).Scan(&id, &c.Name, &dim, &c.VectorizerVersion, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, cacheerr.New(cacheerr.CodeCollectionNotFound,
			fmt.Sprintf("collection not found: %s", name), cacheerr.FieldCollection(name))
	}
	if err != nil {
		return nil, 0, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to read collection", cacheerr.FieldCollection(name))
	}
	if dim.Valid {
		c.Dimension = int(dim.Int64)
	}
	return &c, id, nil
}

// Delete removes the named collection and its entries. Deleting a missing collection is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := dropCollection(ctx, tx, name); err != nil {
		return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to delete collection", cacheerr.FieldCollection(name))
	}
	if err := tx.Commit(); err != nil {
		return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to commit delete")
	}
	s.invalidate(name)
	return nil
}

func dropCollection(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM entries WHERE collection_id IN (SELECT id FROM collections WHERE name = ?)`, name); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	return err
}

// List returns all collections ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]models.Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, dimension, vectorizer_version, created_at FROM collections ORDER BY name`)
	if err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to list collections")
	}
	defer rows.Close()

	var out []models.Collection
	for rows.Next() {
		var c models.Collection
		var dim sql.NullInt64
		if err := rows.Scan(&c.Name, &dim, &c.VectorizerVersion, &c.CreatedAt); err != nil {
			return nil, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to scan collection")
		}
		if dim.Valid {
			c.Dimension = int(dim.Int64)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SafeAdd inserts entries in one transaction. The recorded dimension is read from the
// collections table before any insert; a mismatch rejects the whole batch. The first
// add to an empty collection records its dimension.
func (s *SQLiteStore) SafeAdd(ctx context.Context, name string, entries []models.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	dim := len(entries[0].Vector)
	if dim == 0 {
		return cacheerr.New(cacheerr.CodeInvalidInput, "entry vector cannot be empty", cacheerr.FieldCollection(name))
	}
	for _, e := range entries {
		if e.ID == "" {
			return cacheerr.New(cacheerr.CodeInvalidInput, "entry id cannot be empty", cacheerr.FieldCollection(name))
		}
		if len(e.Vector) != dim {
			return cacheerr.New(cacheerr.CodeDimensionMismatch,
				fmt.Sprintf("embedding dimension mismatch within batch: %d vs %d", dim, len(e.Vector)),
				cacheerr.FieldCollection(name))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	coll, collID, err := s.getCollection(ctx, tx, name)
	if err != nil {
		return err
	}
	switch {
	case coll.Dimension == 0:
		if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimension = ? WHERE id = ?`, dim, collID); err != nil {
			return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to record dimension")
		}
	case coll.Dimension != dim:
		return cacheerr.New(cacheerr.CodeDimensionMismatch,
			fmt.Sprintf("embedding dimension mismatch: collection=%d, provided=%d", coll.Dimension, dim),
			cacheerr.FieldCollection(name),
			cacheerr.Field("expected", coll.Dimension),
			cacheerr.Field("actual", dim),
		)
	}

	var nextSeq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM entries WHERE collection_id = ?`, collID,
	).Scan(&nextSeq); err != nil {
		return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to read sequence")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (id, collection_id, seq, question, answer, vector, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to prepare insert")
	}
	defer stmt.Close()

	now := time.Now()
	for i, e := range entries {
		blob, err := serializeVector(e.Vector)
		if err != nil {
			return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to serialize vector")
		}
		if _, err := stmt.ExecContext(ctx, e.ID, collID, nextSeq+int64(i), e.Question, e.Answer, blob, now); err != nil {
			return cacheerr.Wrap(err, cacheerr.CodeStoreFailure,
				fmt.Sprintf("failed to insert entry %s", e.ID), cacheerr.FieldCollection(name))
		}
	}

	if err := tx.Commit(); err != nil {
		return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to commit insert")
	}
	s.invalidate(name)
	return nil
}

// GetAll returns every entry of the collection in insertion order.
func (s *SQLiteStore) GetAll(ctx context.Context, name string) ([]models.CacheEntry, error) {
	_, collID, err := s.getCollection(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, answer, vector, created_at FROM entries WHERE collection_id = ? ORDER BY seq`, collID)
	if err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to read entries", cacheerr.FieldCollection(name))
	}
	defer rows.Close()

	var out []models.CacheEntry
	for rows.Next() {
		var e models.CacheEntry
		var blob []byte
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &blob, &e.CreatedAt); err != nil {
			return nil, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to scan entry")
		}
		if e.Vector, err = deserializeVector(blob); err != nil {
			return nil, cacheerr.Wrap(err, cacheerr.CodeStoreCorrupt, "failed to decode vector",
				cacheerr.FieldCollection(name), cacheerr.Field("entry_id", e.ID))
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to read entries")
	}
	return out, nil
}

// Count returns the number of entries in the collection.
func (s *SQLiteStore) Count(ctx context.Context, name string) (int, error) {
	_, collID, err := s.getCollection(ctx, s.db, name)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE collection_id = ?`, collID).Scan(&n); err != nil {
		return 0, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to count entries", cacheerr.FieldCollection(name))
	}
	return n, nil
}

// QueryNearest returns up to k candidates ordered by ascending L2 distance. Equal distances
// keep insertion order. An empty collection returns no candidates.
func (s *SQLiteStore) QueryNearest(ctx context.Context, name string, vec []float32, k int) ([]models.Candidate, error) {
	coll, collID, err := s.getCollection(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if coll.Dimension == 0 || k <= 0 {
		return nil, nil
	}
	if len(vec) != coll.Dimension {
		return nil, cacheerr.New(cacheerr.CodeDimensionMismatch,
			fmt.Sprintf("query dimension mismatch: collection=%d, provided=%d", coll.Dimension, len(vec)),
			cacheerr.FieldCollection(name))
	}
	if !s.hotIndex {
		return s.nearestSQL(ctx, collID, vec, k)
	}

	hot, err := s.loadHot(ctx, name, coll.Dimension)
	if err != nil {
		return nil, err
	}
	results, err := hot.index.Search(ctx, vec, k)
	if err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "nearest-neighbor search failed", cacheerr.FieldCollection(name))
	}
	out := make([]models.Candidate, 0, len(results))
	for _, r := range results {
		out = append(out, models.Candidate{Entry: hot.entries[r.ID], VectorDistance: r.Distance})
	}
	return out, nil
}

func (s *SQLiteStore) loadHot(ctx context.Context, name string, dim int) (*hotCollection, error) {
	s.mu.Lock()
	h, ok := s.hot[name]
	gen := s.gens[name]
	s.mu.Unlock()
	if ok && h.index.Dimensions() == dim {
		return h, nil
	}

	entries, err := s.GetAll(ctx, name)
	if err != nil {
		return nil, err
	}
	idx, err := vector.NewMemoryIndex(dim)
	if err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to create index")
	}
	ids := make([]string, len(entries))
	vecs := make([][]float32, len(entries))
	byID := make(map[string]models.CacheEntry, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		vecs[i] = e.Vector
		byID[e.ID] = e
	}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeStoreCorrupt, "stored vectors disagree with collection dimension",
			cacheerr.FieldCollection(name))
	}
	h = &hotCollection{index: idx, entries: byID}

	// A write that landed while loading makes this snapshot stale; serve it once but do not keep it.
	s.mu.Lock()
	if s.gens[name] == gen {
		s.hot[name] = h
	}
	s.mu.Unlock()
	return h, nil
}

func (s *SQLiteStore) invalidate(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		// Queries may still hold the old index; drop it without closing.
		s.gens[name]++
		delete(s.hot, name)
	}
}

// Swap replaces live with staging in one transaction. The live collection, if any, is
// dropped only inside the transaction that renames staging, so readers never observe
// an empty or partial collection.
func (s *SQLiteStore) Swap(ctx context.Context, staging, live string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, _, err := s.getCollection(ctx, tx, staging); err != nil {
		return err
	}
	if err := dropCollection(ctx, tx, live); err != nil {
		return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to drop live collection", cacheerr.FieldCollection(live))
	}
	if _, err := tx.ExecContext(ctx, `UPDATE collections SET name = ? WHERE name = ?`, live, staging); err != nil {
		return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to rename staging collection", cacheerr.FieldCollection(staging))
	}
	if err := tx.Commit(); err != nil {
		return cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to commit swap")
	}
	s.invalidate(staging, live)
	return nil
}

// Backup writes a consistent copy of the store to <path>.backup.<unix> using VACUUM INTO.
// It returns "" without error when the store holds no collections.
func (s *SQLiteStore) Backup(ctx context.Context) (string, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections`).Scan(&n); err != nil {
		return "", cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to inspect store")
	}
	if n == 0 {
		return "", nil
	}
	stamp := time.Now().Unix()
	dest := fmt.Sprintf("%s.backup.%d", s.path, stamp)
	for i := 1; fileExists(dest); i++ {
		dest = fmt.Sprintf("%s.backup.%d-%d", s.path, stamp, i)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return "", cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to back up store", cacheerr.Field("backup", dest))
	}
	s.logger.Info("store backed up", zap.String("backup", dest))
	return dest, nil
}

// Health reports whether the file and collection exist, whether the collection config is
// well formed, its recorded dimension, and how many stored vectors disagree with it.
func (s *SQLiteStore) Health(ctx context.Context, name string) (models.StoreHealth, error) {
	h := models.StoreHealth{FileExists: fileExists(s.path)}
	if usage, err := DiskUsageBytes(s.path, s.path+"-wal", s.path+"-shm"); err == nil {
		h.DiskUsageBytes = usage
	}

	var (
		collID int64
		dim    sql.NullInt64
		raw    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, dimension, vectorizer_version, config_json FROM collections WHERE name = ?`, name,
	).Scan(&collID, &dim, &h.VectorizerVersion, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return h, nil
	}
	if err != nil {
		return h, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to read collection", cacheerr.FieldCollection(name))
	}
	h.CollectionExists = true
	h.ConfigValid = validateConfig(raw) == nil
	if dim.Valid {
		h.Dimension = int(dim.Int64)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE collection_id = ?`, collID,
	).Scan(&h.EntryCount); err != nil {
		return h, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to count entries")
	}
	if h.Dimension > 0 {
		mismatched, err := countDimensionMismatches(ctx, s.db, collID, h.Dimension)
		if err != nil {
			return h, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to check vector dimensions")
		}
		h.MismatchedEntries = mismatched
	}
	return h, nil
}
