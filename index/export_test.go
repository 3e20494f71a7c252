package index

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
)

func TestExportIndex(t *testing.T) {
	ix := loadIndex(t, fixture)
	lines, err := ix.Export(ExportOptions{Output: format.OutputIndex})
	require.NoError(t, err)
	assert.Equal(t, []string{
		".\tage=51; id=3; lab=CRG; sex=F;",
		"a_1.fastq\tage=65; id=1; lab=CRG; sex=M; size=100; type=fastq; view=FqRd1;",
		"a_2.fastq\tage=65; id=1; lab=CRG; sex=M; size=120; type=fastq; view=FqRd2;",
		"b.bam\tage=40; id=2; lab=CNAG; sex=F; size=30; type=bam; view=Alignments;",
	}, lines)
}

func TestExportTags(t *testing.T) {
	ix := loadIndex(t, fixture)

	lines, err := ix.Export(ExportOptions{Tags: []string{"path", "view"}, HideMissing: true, Header: true})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"path\tview",
		"a_1.fastq\tFqRd1",
		"a_2.fastq\tFqRd2",
		"b.bam\tAlignments",
	}, lines)

	shown, err := ix.Export(ExportOptions{Tags: []string{"path", "view"}})
	require.NoError(t, err)
	require.Len(t, shown, 4)
	assert.Equal(t, "NA\tNA", shown[0], "missing cells use the sentinel")
}

func TestExportSortsByTags(t *testing.T) {
	ix := loadIndex(t, fixture)
	lines, err := ix.Export(ExportOptions{Tags: []string{"sex", "id"}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"F\t2",
		"F\t3",
		"M\t1",
		"M\t1",
	}, lines)
}

func TestExportTypes(t *testing.T) {
	ix := loadIndex(t, fixture)
	lines, err := ix.Export(ExportOptions{Types: []string{"bam"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.bam\tage=40; id=2; lab=CNAG; sex=F; size=30; type=bam; view=Alignments;"}, lines)
}

func TestExportTemplates(t *testing.T) {
	ix := loadIndex(t, "data/b.bam.gz\tid=2; type=bam; view=Alignments;\n")
	lines, err := ix.Export(ExportOptions{Tags: []string{"{dirname}", "{basename}", "{name}", "{ext}", "{id}_{view}", "{tissue}"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"data\tb.bam.gz\tb\tgz\t2_Alignments\tNA"}, lines)
}

func TestExportAbsolute(t *testing.T) {
	dir := t.TempDir()
	ix := loadIndex(t, fixture+"/abs/c.bam\tid=2; type=bam;\n", WithPath(filepath.Join(dir, "index.txt")))

	lines, err := ix.Export(ExportOptions{Tags: []string{"path"}, Absolute: true, HideMissing: true})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/abs/c.bam",
		filepath.Join(dir, "a_1.fastq"),
		filepath.Join(dir, "a_2.fastq"),
		filepath.Join(dir, "b.bam"),
	}, lines)
}

func TestExportMapKeys(t *testing.T) {
	f := format.Default().WithOverrides(format.Overrides{Map: map[string]string{"id": "labExpId", "view": "outputView"}})
	ix := New(f, WithLogger(zaptest.NewLogger(t).Sugar()))
	require.NoError(t, ix.Load(strings.NewReader(fixture)))

	lines, err := ix.Export(ExportOptions{Tags: []string{"id", "view"}, MapKeys: true, Header: true, HideMissing: true})
	require.NoError(t, err)
	assert.Equal(t, "labExpId\toutputView", lines[0])
	assert.Equal(t, "1\tFqRd1", lines[1])

	rows, err := ix.Rows(ExportOptions{MapKeys: true})
	require.NoError(t, err)
	assert.True(t, rows[1].Has("labExpId"))
	assert.False(t, rows[1].Has("id"))

	plainRows, err := ix.Rows(ExportOptions{})
	require.NoError(t, err)
	assert.True(t, plainRows[1].Has("id"))
}

func TestExportJSON(t *testing.T) {
	ix := loadIndex(t, fixture)
	var buf strings.Builder
	require.NoError(t, ix.ExportTo(&buf, ExportOptions{Output: format.OutputJSON}))

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &rows))
	require.Len(t, rows, 4)
	assert.Equal(t, "3", rows[0]["id"])
	assert.Equal(t, float64(51), rows[0]["age"])
	assert.Equal(t, "a_1.fastq", rows[1]["path"])
}

func TestExportJSONEmpty(t *testing.T) {
	lines, err := newIndex(t).Export(ExportOptions{Output: format.OutputJSON})
	require.NoError(t, err)
	assert.Equal(t, []string{"[]"}, lines)
}

func TestExportYAML(t *testing.T) {
	ix := loadIndex(t, fixture)
	var buf strings.Builder
	require.NoError(t, ix.ExportTo(&buf, ExportOptions{Output: format.OutputYAML, Tags: []string{"id", "path"}, HideMissing: true}))

	var rows []map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(buf.String()), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "a_1.fastq", rows[0]["path"])
	assert.Equal(t, "1", rows[0]["id"])
}

func TestExportTable(t *testing.T) {
	ix := loadIndex(t, fixture)

	lines, err := ix.Export(ExportOptions{Output: format.OutputCSV})
	require.NoError(t, err)
	require.Len(t, lines, 5)
	assert.Equal(t, "age,id,lab,path,sex,size,type,view", lines[0])
	assert.Equal(t, "51,3,CRG,NA,F,NA,NA,NA", lines[1])

	tsv, err := ix.Export(ExportOptions{Output: format.OutputTSV, Tags: []string{"id", "view"}, HideMissing: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"1\tFqRd1", "1\tFqRd2", "2\tAlignments", "3\tNA"}, tsv)

	withHeader, err := ix.Export(ExportOptions{Output: format.OutputTSV, Tags: []string{"id"}, Header: true})
	require.NoError(t, err)
	assert.Equal(t, "id", withHeader[0])
}

func TestTable(t *testing.T) {
	ix := newIndex(t)
	_, err := ix.Insert(rec("id", "1", "path", "a.txt", "note", `say "hi", twice`))
	require.NoError(t, err)

	header, cells, err := ix.Table(ExportOptions{Tags: []string{"path", "note", "view"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"path", "note", "view"}, header)
	assert.Equal(t, [][]string{{"a.txt", `say "hi", twice`, "NA"}}, cells)
}

func TestExportReplicateLists(t *testing.T) {
	ix := loadIndex(t, ".\tid=A; sex=M;\n.\tid=B; sex=F;\n")
	_, err := ix.Insert(rec("id", "A,B"))
	require.NoError(t, err)

	lines, err := ix.Export(ExportOptions{Output: format.OutputCSV, Tags: []string{"id", "sex"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"A,M", "\"A,B\",\"M,F\"", "B,F"}, lines)
}

func TestExportUnknownOutput(t *testing.T) {
	_, err := loadIndex(t, fixture).Export(ExportOptions{Output: "xml"})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestSaveToMatchesExport(t *testing.T) {
	ix := loadIndex(t, fixture)
	var buf strings.Builder
	require.NoError(t, ix.SaveTo(&buf))

	reloaded := loadIndex(t, buf.String())
	want, _ := ix.Export(ExportOptions{})
	got, _ := reloaded.Export(ExportOptions{})
	assert.Equal(t, want, got)
}
