package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Collection config tags. Every stored config must be an object tagged CollectionConfiguration
// with an index object tagged IndexConfiguration using the l2 space.
const (
	configTypeCollection = "CollectionConfiguration"
	configTypeIndex      = "IndexConfiguration"
	configSpaceL2        = "l2"

	// legacyConfigMarker appears only in configs written by an older, incompatible schema.
	legacyConfigMarker = "vector_index"
)

// errConfigShape marks an open failure caused by a malformed collection config.
var errConfigShape = errors.New("malformed collection configuration")

type indexConfig struct {
	Type  string `json:"_type"`
	Space string `json:"space"`
}

type collectionConfig struct {
	Type  string       `json:"_type"`
	Index *indexConfig `json:"index"`
}

func defaultConfigJSON() string {
	data, _ := json.Marshal(collectionConfig{
		Type:  configTypeCollection,
		Index: &indexConfig{Type: configTypeIndex, Space: configSpaceL2},
	})
	return string(data)
}

// validateConfig reports whether raw is a well-formed collection config.
func validateConfig(raw string) error {
	var cfg collectionConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return fmt.Errorf("%w: %v", errConfigShape, err)
	}
	if cfg.Type != configTypeCollection {
		return fmt.Errorf("%w: missing or unknown _type %q", errConfigShape, cfg.Type)
	}
	if cfg.Index == nil || cfg.Index.Type != configTypeIndex {
		return fmt.Errorf("%w: missing index configuration", errConfigShape)
	}
	if cfg.Index.Space != configSpaceL2 {
		return fmt.Errorf("%w: unsupported space %q", errConfigShape, cfg.Index.Space)
	}
	return nil
}

// repairConfig returns the repaired form of raw and whether it changed. Missing tags are
// added in place; anything that is not a JSON object is replaced by the default template.
// An unsupported space is left alone: it is not a structural problem and cannot be fixed
// without re-embedding.
func repairConfig(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return defaultConfigJSON(), true
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil || cfg == nil {
		return defaultConfigJSON(), true
	}

	changed := false
	if _, ok := cfg["_type"].(string); !ok {
		cfg["_type"] = configTypeCollection
		changed = true
	}
	index, ok := cfg["index"].(map[string]any)
	if !ok {
		cfg["index"] = map[string]any{"_type": configTypeIndex, "space": configSpaceL2}
		changed = true
	} else {
		if _, ok := index["_type"].(string); !ok {
			index["_type"] = configTypeIndex
			changed = true
		}
		if _, ok := index["space"].(string); !ok {
			index["space"] = configSpaceL2
			changed = true
		}
	}
	if !changed {
		return raw, false
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return defaultConfigJSON(), true
	}
	return string(data), true
}

// openRaw opens the file for inspection without creating it or applying the schema.
func openRaw(path string) (*sql.DB, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, false, err
	}
	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='collections'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		_ = db.Close()
		return nil, false, nil
	}
	if err != nil {
		_ = db.Close()
		return nil, false, err
	}
	return db, true, nil
}

// hasLegacyConfig reports whether any collection config was written by the incompatible
// older schema. Inspection errors are treated as "no": the later steps deal with them.
func hasLegacyConfig(path string) bool {
	db, ok, err := openRaw(path)
	if err != nil || !ok {
		return false
	}
	defer db.Close()

	rows, err := db.Query(`SELECT config_json FROM collections`)
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return false
		}
		if strings.Contains(raw.String, legacyConfigMarker) {
			return true
		}
	}
	return false
}

// repairConfigs rewrites malformed collection configs in place and returns how many were fixed.
func repairConfigs(path string, logger *zap.Logger) (int, error) {
	db, ok, err := openRaw(path)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect store: %w", err)
	}
	if !ok {
		return 0, nil
	}
	defer db.Close()

	type row struct {
		id   int64
		name string
		raw  string
	}
	rows, err := db.Query(`SELECT id, name, config_json FROM collections`)
	if err != nil {
		return 0, fmt.Errorf("failed to read collection configs: %w", err)
	}
	var pending []row
	for rows.Next() {
		var r row
		var raw sql.NullString
		if err := rows.Scan(&r.id, &r.name, &raw); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan collection config: %w", err)
		}
		r.raw = raw.String
		pending = append(pending, r)
	}
	rows.Close()

	fixed := 0
	for _, r := range pending {
		repaired, changed := repairConfig(r.raw)
		if !changed {
			continue
		}
		if _, err := db.Exec(`UPDATE collections SET config_json = ? WHERE id = ?`, repaired, r.id); err != nil {
			logger.Warn("failed to repair collection config", zap.String("collection", r.name), zap.Error(err))
			continue
		}
		fixed++
	}
	return fixed, nil
}

// quarantine moves path and its WAL/SHM side files aside under a timestamped suffix and
// returns the new path of the main file. A missing file is not an error.
func quarantine(path, suffix string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	}
	stamp := time.Now().Unix()
	backup := fmt.Sprintf("%s.%s.%d", path, suffix, stamp)
	for i := 1; fileExists(backup); i++ {
		backup = fmt.Sprintf("%s.%s.%d-%d", path, suffix, stamp, i)
	}
	if err := os.Rename(path, backup); err != nil {
		return "", fmt.Errorf("failed to quarantine store: %w", err)
	}
	for _, side := range []string{"-wal", "-shm"} {
		if fileExists(path + side) {
			if err := os.Rename(path+side, backup+side); err != nil {
				return backup, fmt.Errorf("failed to quarantine %s file: %w", side, err)
			}
		}
	}
	return backup, nil
}

// isShapeError reports whether an open failure is one that quarantine-and-retry can fix.
func isShapeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errConfigShape) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "file is not a database") ||
		strings.Contains(msg, "database disk image is malformed") ||
		strings.Contains(msg, "no such column")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
