package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/models"
)

func init() {
	sqlite_vec.Auto()
}

// serializeVector encodes v in the sqlite-vec float32 blob format.
func serializeVector(v []float32) ([]byte, error) {
	return sqlite_vec.SerializeFloat32(v)
}

// deserializeVector decodes a sqlite-vec float32 blob (little-endian IEEE 754).
func deserializeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// countDimensionMismatches counts stored vectors whose length differs from dim.
func countDimensionMismatches(ctx context.Context, db *sql.DB, collID int64, dim int) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE collection_id = ? AND vec_length(vector) != ?`, collID, dim,
	).Scan(&n)
	return n, err
}

// nearestSQL ranks entries with vec_distance_l2 inside SQLite and reports squared distances,
// matching the hot index. Ties fall back to insertion order.
func (s *SQLiteStore) nearestSQL(ctx context.Context, collID int64, vec []float32, k int) ([]models.Candidate, error) {
	blob, err := serializeVector(vec)
	if err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to serialize query vector")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, answer, vector, created_at, vec_distance_l2(vector, ?) AS distance
		 FROM entries WHERE collection_id = ?
		 ORDER BY distance, seq LIMIT ?`, blob, collID, k)
	if err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "nearest-neighbor query failed")
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var c models.Candidate
		var raw []byte
		if err := rows.Scan(&c.Entry.ID, &c.Entry.Question, &c.Entry.Answer, &raw, &c.Entry.CreatedAt, &c.VectorDistance); err != nil {
			return nil, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "failed to scan candidate")
		}
		c.VectorDistance *= c.VectorDistance
		if c.Entry.Vector, err = deserializeVector(raw); err != nil {
			return nil, cacheerr.Wrap(err, cacheerr.CodeStoreCorrupt, "failed to decode vector")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeStoreFailure, "nearest-neighbor query failed")
	}
	return out, nil
}
