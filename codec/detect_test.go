package codec

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
)

func TestDetect(t *testing.T) {
	f := format.Default()

	tests := []struct {
		name   string
		input  string
		layout Layout
		delim  rune
	}{
		{"index", ".\tid=1; age=10;\ntest_1.fastq\tid=1; type=fastq;\n", LayoutIndex, 0},
		{"index single line", "a.bam\tid=1;\n", LayoutIndex, 0},
		{"bare tags", "id=1; age=10;\n", LayoutIndex, 0},
		{"empty", "", LayoutIndex, 0},
		{"csv", "id,path,age\n1,a.bam,10\n", LayoutCSV, ','},
		{"tsv", "id\tpath\n1\ta.bam\n", LayoutTSV, '\t'},
		{"semicolon table", "id;path\n1;a.bam\n", LayoutCSV, ';'},
		{"pipe table", "id|path\n1|a.bam\n", LayoutCSV, '|'},
		{"comment lines are skipped", "# generated\nid,path\n1,a.bam\n", LayoutCSV, ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := strings.NewReader(tt.input)
			d, err := Detect(r, f)
			require.NoError(t, err)
			assert.Equal(t, tt.layout, d.Layout)
			assert.Equal(t, tt.delim, d.Delimiter)

			rest, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, tt.input, string(rest), "reader must be rewound")
		})
	}
}

func TestDetectErrors(t *testing.T) {
	f := format.Default()

	for name, input := range map[string]string{
		"single column":       "id\n1\n",
		"numeric header":      "1,2\n3,4\n",
		"empty header cell":   "id,,age\n1,2,3\n",
		"inconsistent counts": "a,b\n1,2,3\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Detect(strings.NewReader(input), f)
			require.Error(t, err)
			assert.True(t, errors.IsFormatError(err), "got %v", err)
		})
	}
}

func TestDetectHeader(t *testing.T) {
	d, err := Detect(strings.NewReader("labExpId,\"file path\"\nLID1,a.bam\n"), format.Default())
	require.NoError(t, err)
	assert.Equal(t, []string{"labExpId", "file path"}, d.Header)
	assert.True(t, d.Tabular())
	assert.Equal(t, "csv", d.Layout.String())
}

func TestReadTable(t *testing.T) {
	f := format.Default().WithOverrides(format.Overrides{IDDesc: "labExpId"})
	input := "labExpId,path,age,code\nLID1,a.bam,10,007\nLID2,b.bam,NA,1\n"

	var got []attrs.Attrs
	var lines []int
	err := ReadTable(strings.NewReader(input), ',', nil, f, func(line int, rec attrs.Attrs) error {
		got = append(got, rec)
		lines = append(lines, line)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []int{2, 3}, lines)

	assert.Equal(t, attrs.String("LID1"), got[0]["id"])
	assert.Equal(t, attrs.Int(10), got[0]["age"])
	assert.Equal(t, attrs.String("007"), got[0]["code"])
	assert.Equal(t, "NA", got[1].GetString("age"))
}

func TestReadTableExternalHeader(t *testing.T) {
	input := "1\ta.bam\tM\n2\tb.bam\tF\n"
	var got []attrs.Attrs
	err := ReadTable(strings.NewReader(input), '\t', []string{"id", "path", "sex"}, format.Default(), func(_ int, rec attrs.Attrs) error {
		got = append(got, rec)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "F", got[1].GetString("sex"))
}

func TestReadTableColumnMismatch(t *testing.T) {
	err := ReadTable(strings.NewReader("id,path\n1,a.bam,extra\n"), ',', nil, format.Default(), func(int, attrs.Attrs) error {
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.IsFormatError(err))
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadTableCallbackError(t *testing.T) {
	stop := errors.New("stop")
	err := ReadTable(strings.NewReader("id,path\n1,a\n"), ',', nil, format.Default(), func(int, attrs.Attrs) error {
		return stop
	})
	assert.True(t, errors.Is(err, stop))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	rows := []attrs.Attrs{
		{"id": attrs.String("1"), "sex": attrs.Strings("M", "F")},
		{"id": attrs.String("2"), "desc": attrs.String("with, comma")},
	}
	require.NoError(t, WriteTable(&buf, ',', []string{"id", "sex", "desc"}, rows, format.Default(), "NA"))
	assert.Equal(t, "id,sex,desc\n1,\"M,F\",NA\n2,NA,\"with, comma\"\n", buf.String())
}
