package format

import (
	"strings"

	"github.com/teranos/idxtools/errors"
)

// Output is an export serialization.
type Output string

const (
	OutputIndex Output = "index"
	OutputTSV   Output = "tsv"
	OutputCSV   Output = "csv"
	OutputJSON  Output = "json"
	OutputYAML  Output = "yaml"
)

// Outputs lists the supported export formats.
var Outputs = []Output{OutputIndex, OutputTSV, OutputCSV, OutputJSON, OutputYAML}

// ParseOutput resolves an output format name. The empty name is index.
func ParseOutput(name string) (Output, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "index":
		return OutputIndex, nil
	case "tsv", "tab":
		return OutputTSV, nil
	case "csv":
		return OutputCSV, nil
	case "json":
		return OutputJSON, nil
	case "yaml", "yml":
		return OutputYAML, nil
	default:
		return "", errors.NewValidationError("unknown output format %q (valid: index, tsv, csv, json, yaml)", name)
	}
}

// Tabular reports whether o is a delimited table format.
func (o Output) Tabular() bool {
	return o == OutputTSV || o == OutputCSV
}

// Delimiter returns the field delimiter for tabular outputs.
func (o Output) Delimiter() rune {
	if o == OutputCSV {
		return ','
	}
	return '\t'
}
