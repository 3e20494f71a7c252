// Package format defines the immutable format descriptor shared by the
// codec, the dataset model and the index.
//
// A Format is built once, by config.Config.Format or format.Default, and
// passed by pointer everywhere. Nothing mutates it after construction;
// WithOverrides returns a new value.
package format

import (
	"sort"
	"strings"

	"github.com/teranos/idxtools/errors"
)

// Default separators and descriptors.
const (
	DefaultColSep        = "\t"
	DefaultKwSep         = " "
	DefaultSep           = "="
	DefaultTrail         = ";"
	DefaultRepSep        = ","
	DefaultIDDesc        = "id"
	DefaultPathDesc      = "path"
	DefaultTypeDesc      = "type"
	DefaultMissingValue  = "NA"
	DefaultHashAlgorithm = "md5"
)

// Canonical attribute names used inside the engine.
const (
	KeyID   = "id"
	KeyPath = "path"
	KeyType = "type"
)

// DefaultFileInfo lists the attributes that describe a file rather than a dataset.
var DefaultFileInfo = []string{"path", "size", "md5", "type", "view"}

// Format describes how index lines are laid out and which attributes
// belong to files.
type Format struct {
	ColSep        string
	KwSep         string
	Sep           string
	Trail         string
	RepSep        string
	IDDesc        string
	PathDesc      string
	TypeDesc      string
	MissingValue  string
	HashAlgorithm string

	fileInfo map[string]struct{}
	fileKeys []string
	keyMap   map[string]string
}

// Overrides carries optional replacements for Format fields. Empty fields
// leave the current value in place.
type Overrides struct {
	ColSep        string            `yaml:"col_sep" json:"col_sep" mapstructure:"col_sep" toml:"col_sep"`
	KwSep         string            `yaml:"kw_sep" json:"kw_sep" mapstructure:"kw_sep" toml:"kw_sep"`
	Sep           string            `yaml:"sep" json:"sep" mapstructure:"sep" toml:"sep"`
	Trail         string            `yaml:"trail" json:"trail" mapstructure:"trail" toml:"trail"`
	RepSep        string            `yaml:"rep_sep" json:"rep_sep" mapstructure:"rep_sep" toml:"rep_sep"`
	IDDesc        string            `yaml:"id" json:"id" mapstructure:"id_desc" toml:"id"`
	PathDesc      string            `yaml:"path" json:"path" mapstructure:"path_desc" toml:"path"`
	TypeDesc      string            `yaml:"type" json:"type" mapstructure:"type_desc" toml:"type"`
	FileInfo      []string          `yaml:"fileinfo" json:"fileinfo" mapstructure:"fileinfo" toml:"fileinfo"`
	MissingValue  string            `yaml:"missing_value" json:"missing_value" mapstructure:"missing_value" toml:"missing_value"`
	HashAlgorithm string            `yaml:"hash_algorithm" json:"hash_algorithm" mapstructure:"hash_algorithm" toml:"hash_algorithm"`
	Map           map[string]string `yaml:"map" json:"map" mapstructure:"map" toml:"map"`
}

// Default returns the default format.
func Default() *Format {
	f := &Format{
		ColSep:        DefaultColSep,
		KwSep:         DefaultKwSep,
		Sep:           DefaultSep,
		Trail:         DefaultTrail,
		RepSep:        DefaultRepSep,
		IDDesc:        DefaultIDDesc,
		PathDesc:      DefaultPathDesc,
		TypeDesc:      DefaultTypeDesc,
		MissingValue:  DefaultMissingValue,
		HashAlgorithm: DefaultHashAlgorithm,
	}
	f.setFileInfo(DefaultFileInfo)
	f.keyMap = map[string]string{}
	return f
}

// WithOverrides returns a copy of f with the non-empty fields of o applied.
func (f *Format) WithOverrides(o Overrides) *Format {
	out := *f
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&out.ColSep, o.ColSep)
	set(&out.KwSep, o.KwSep)
	set(&out.Sep, o.Sep)
	set(&out.Trail, o.Trail)
	set(&out.RepSep, o.RepSep)
	set(&out.IDDesc, o.IDDesc)
	set(&out.PathDesc, o.PathDesc)
	set(&out.TypeDesc, o.TypeDesc)
	set(&out.MissingValue, o.MissingValue)
	set(&out.HashAlgorithm, o.HashAlgorithm)

	if len(o.FileInfo) > 0 {
		out.setFileInfo(o.FileInfo)
	} else {
		out.setFileInfo(f.fileKeys)
	}

	out.keyMap = make(map[string]string, len(f.keyMap)+len(o.Map))
	for k, v := range f.keyMap {
		out.keyMap[k] = v
	}
	for k, v := range o.Map {
		out.keyMap[k] = v
	}
	return &out
}

func (f *Format) setFileInfo(keys []string) {
	f.fileInfo = make(map[string]struct{}, len(keys)+2)
	f.fileKeys = nil
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := f.fileInfo[k]; dup {
			continue
		}
		f.fileInfo[k] = struct{}{}
		f.fileKeys = append(f.fileKeys, k)
	}
	// path and type always describe a file.
	for _, k := range []string{KeyPath, KeyType} {
		if _, ok := f.fileInfo[k]; !ok {
			f.fileInfo[k] = struct{}{}
			f.fileKeys = append(f.fileKeys, k)
		}
	}
}

// IsFileInfo reports whether key is a file-scoped attribute.
func (f *Format) IsFileInfo(key string) bool {
	_, ok := f.fileInfo[key]
	return ok
}

// FileInfo returns the file-scoped attribute names in configuration order.
func (f *Format) FileInfo() []string {
	out := make([]string, len(f.fileKeys))
	copy(out, f.fileKeys)
	return out
}

// MapKey returns the export name for key, or key itself when unmapped.
func (f *Format) MapKey(key string) string {
	if mapped, ok := f.keyMap[key]; ok && mapped != "" {
		return mapped
	}
	return key
}

// Canonical maps a source attribute name onto the engine's name: the
// configured id, path and type descriptors become id, path and type.
func (f *Format) Canonical(key string) string {
	switch key {
	case f.IDDesc:
		return KeyID
	case f.PathDesc:
		return KeyPath
	case f.TypeDesc:
		return KeyType
	default:
		return key
	}
}

// Validate checks that the separators can be told apart.
func (f *Format) Validate() error {
	fields := map[string]string{
		"col_sep": f.ColSep,
		"kw_sep":  f.KwSep,
		"sep":     f.Sep,
		"trail":   f.Trail,
		"rep_sep": f.RepSep,
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if fields[name] == "" {
			return errors.NewValidationError("format: %s must not be empty", name)
		}
	}
	if f.Sep == f.Trail {
		return errors.NewValidationError("format: sep and trail must differ (both %q)", f.Sep)
	}
	if f.ColSep == f.KwSep {
		return errors.NewValidationError("format: col_sep and kw_sep must differ (both %q)", f.ColSep)
	}
	if f.IDDesc == "" {
		return errors.NewValidationError("format: id descriptor must not be empty")
	}
	if !IsHashAlgorithm(f.HashAlgorithm) {
		return errors.NewValidationError("format: unknown hash algorithm %q (valid: md5, sha1, sha256)", f.HashAlgorithm)
	}
	return nil
}

// IsHashAlgorithm reports whether name is a supported checksum algorithm.
func IsHashAlgorithm(name string) bool {
	switch name {
	case "md5", "sha1", "sha256":
		return true
	}
	return false
}
