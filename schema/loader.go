package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// FormatVersion is the newest entity file format this package understands.
var FormatVersion = version.Must(version.NewVersion("1.1"))

// File is the on-disk layout of an entity declaration file.
type File struct {
	Version  string       `yaml:"version"`
	Entities []Definition `yaml:"entities"`
}

// LoadFile reads and registers the entity declarations stored at path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open entity file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Parse registers the entity declarations in data.
func Parse(data []byte) (*Registry, error) {
	return Load(bytes.NewReader(data))
}

// Load decodes an entity file from r, registers every entity and validates
// the relations between them.
func Load(r io.Reader) (*Registry, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode entity file: %w", err)
	}

	if err := checkVersion(file.Version); err != nil {
		return nil, err
	}

	reg := NewRegistry()
	for _, def := range file.Entities {
		if _, err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

func checkVersion(raw string) error {
	if raw == "" {
		return nil
	}
	v, err := version.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("entity file version %q: %w", raw, err)
	}
	if v.GreaterThan(FormatVersion) {
		return fmt.Errorf("entity file version %s is newer than supported version %s", v, FormatVersion)
	}
	return nil
}

// Marshal encodes the registry back into the entity file layout.
func (r *Registry) Marshal() ([]byte, error) {
	file := File{Version: FormatVersion.Original()}
	for _, et := range r.Entities() {
		def := Definition{
			Name:       et.name,
			Table:      et.table,
			PrimaryKey: et.primaryKey,
			Fields:     et.Fields(),
		}
		if len(et.hasOne) > 0 {
			def.HasOne = copyRelations(et.hasOne)
		}
		if len(et.hasMany) > 0 {
			def.HasMany = copyRelations(et.hasMany)
		}
		if len(et.belongsTo) > 0 {
			def.BelongsTo = copyRelations(et.belongsTo)
		}
		file.Entities = append(file.Entities, def)
	}
	return yaml.Marshal(file)
}
