package logger

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
	colorDim   = "\x1b[38;5;245m"
	colorKey   = "\x1b[38;5;108m"
	colorWarn  = "\x1b[38;5;214m"
	colorError = "\x1b[38;5;167m"
)

var bufferPool = buffer.NewPool()

// minimalEncoder is a compact console encoder.
// Format: "13:04:35  WARN  index  skipping existing file  path=a.fastq dataset=1"
//
// Colors are applied only when the encoder was created with color enabled,
// so piping stderr to a file stays plain.
type minimalEncoder struct {
	*zapcore.MapObjectEncoder
	color bool
}

func newMinimalEncoder(color bool) *minimalEncoder {
	return &minimalEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		color:            color,
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	clone := newMinimalEncoder(enc.color)
	for k, v := range enc.Fields {
		clone.Fields[k] = v
	}
	return clone
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := bufferPool.Get()

	enc.paint(final, colorDim, ent.Time.Format("15:04:05"))

	if ent.Level != zapcore.InfoLevel {
		final.AppendString("  ")
		enc.paint(final, levelColor(ent.Level), ent.Level.CapitalString())
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		enc.paint(final, colorBold, ent.LoggerName)
	}

	final.AppendString("  ")
	final.AppendString(ent.Message)

	// Context fields attached with With() come first, then call-site fields.
	all := zapcore.NewMapObjectEncoder()
	for k, v := range enc.Fields {
		all.Fields[k] = v
	}
	for _, f := range fields {
		f.AddTo(all)
	}
	if len(all.Fields) > 0 {
		final.AppendString("  ")
		final.AppendString(enc.formatFields(all.Fields))
	}

	final.AppendString("\n")
	return final, nil
}

// formatFields renders every field as key=value, sorted by key.
// No field is ever dropped.
func (enc *minimalEncoder) formatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		key := k
		if enc.color {
			key = colorKey + k + colorReset
		}
		parts = append(parts, key+"="+formatValue(fields[k]))
	}
	return strings.Join(parts, " ")
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		items := make([]string, len(val))
		for i, item := range val {
			items[i] = formatValue(item)
		}
		return "[" + strings.Join(items, ",") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func (enc *minimalEncoder) paint(buf *buffer.Buffer, color, text string) {
	if enc.color && color != "" {
		buf.AppendString(color)
		buf.AppendString(text)
		buf.AppendString(colorReset)
		return
	}
	buf.AppendString(text)
}

func levelColor(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return colorDim
	case zapcore.WarnLevel:
		return colorWarn
	default:
		return colorError
	}
}
