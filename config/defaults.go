package config

import (
	"github.com/spf13/viper"

	"github.com/teranos/idxtools/format"
)

// Environment variable prefix; IDX_FORMAT_COL_SEP maps to format.col_sep.
const EnvPrefix = "IDX"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("index", "")
	v.SetDefault("format_file", "")
	v.SetDefault("output_format", string(format.OutputIndex))
	v.SetDefault("loglevel", "warn")
	v.SetDefault("map_keys", false)

	v.SetDefault("format.col_sep", format.DefaultColSep)
	v.SetDefault("format.kw_sep", format.DefaultKwSep)
	v.SetDefault("format.sep", format.DefaultSep)
	v.SetDefault("format.trail", format.DefaultTrail)
	v.SetDefault("format.rep_sep", format.DefaultRepSep)
	v.SetDefault("format.id_desc", format.DefaultIDDesc)
	v.SetDefault("format.path_desc", format.DefaultPathDesc)
	v.SetDefault("format.type_desc", format.DefaultTypeDesc)
	v.SetDefault("format.fileinfo", format.DefaultFileInfo)
	v.SetDefault("format.missing_value", format.DefaultMissingValue)
	v.SetDefault("format.hash_algorithm", format.DefaultHashAlgorithm)
	v.SetDefault("format.map", map[string]string{})
}

// BindEnvVars binds the short environment names that do not follow the
// prefix-plus-key scheme.
func BindEnvVars(v *viper.Viper) {
	v.BindEnv("index", "IDX_FILE")
	v.BindEnv("format_file", "IDX_FORMAT")
	v.BindEnv("output_format", "IDX_OUTPUT_FORMAT")
	v.BindEnv("loglevel", "IDX_LOGLEVEL")
	v.BindEnv("map_keys", "IDX_MAP_KEYS")
}
