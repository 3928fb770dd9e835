package rangedb

import (
	"fmt"
	"time"

	"github.com/shuntingyard/myipinfo/pkg/util/ipcodec"
)

// Metadata keys
const (
	metaKeySchema  = "schema"
	metaKeyBuiltAt = "built_at"
)

// SetMetadata sets a metadata key-value pair.
func (d *DB) SetMetadata(key, value string) error {
	return d.put(ipcodec.MetaKey(key), []byte(value))
}

// GetMetadata retrieves a metadata value, "" when unset.
func (d *DB) GetMetadata(key string) (string, error) {
	value, err := d.get(ipcodec.MetaKey(key))
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// SchemaVersion retrieves the database schema version, 0 when unset.
func (d *DB) SchemaVersion() (int, error) {
	value, err := d.GetMetadata(metaKeySchema)
	if err != nil {
		return 0, err
	}
	if value == "" {
		return 0, nil
	}
	var version int
	if _, err := fmt.Sscanf(value, "%d", &version); err != nil {
		return 0, fmt.Errorf("invalid schema version: %w", err)
	}
	return version, nil
}

// BuiltAt retrieves the database build timestamp.
func (d *DB) BuiltAt() (time.Time, error) {
	value, err := d.GetMetadata(metaKeyBuiltAt)
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

// initMetadata stamps a fresh database; an existing one is left as is.
func (d *DB) initMetadata() error {
	version, err := d.SchemaVersion()
	if err != nil {
		return err
	}
	if version != 0 {
		return nil
	}
	if err := d.SetMetadata(metaKeySchema, fmt.Sprintf("%d", schemaVersion)); err != nil {
		return err
	}
	return d.SetMetadata(metaKeyBuiltAt, time.Now().UTC().Format(time.RFC3339))
}
