package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
	"github.com/teranos/idxtools/logger"
)

const fixture = ".\tid=1; age=65; sex=M; lab=CRG;\n" +
	"a_1.fastq\tid=1; type=fastq; view=FqRd1; size=100;\n" +
	"a_2.fastq\tid=1; type=fastq; view=FqRd2; size=120;\n" +
	"b.bam\tid=2; age=40; sex=F; lab=CNAG; type=bam; view=Alignments; size=30;\n" +
	"# comment\n" +
	"\n" +
	".\tid=3; age=51; sex=F; lab=CRG;\n"

func newIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	return New(format.Default(), append([]Option{WithLogger(zaptest.NewLogger(t).Sugar())}, opts...)...)
}

func loadIndex(t *testing.T, text string, opts ...Option) *Index {
	t.Helper()
	ix := newIndex(t, opts...)
	require.NoError(t, ix.Load(strings.NewReader(text)))
	return ix
}

func rec(kv ...string) attrs.Attrs {
	a := attrs.Attrs{}
	for i := 0; i+1 < len(kv); i += 2 {
		a[kv[i]] = attrs.String(kv[i+1])
	}
	return a
}

func TestNewEmpty(t *testing.T) {
	ix := newIndex(t)
	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, 0, ix.FileCount())
	assert.Empty(t, ix.Path())
}

func TestLoadTagLines(t *testing.T) {
	ix := loadIndex(t, fixture)

	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, 3, ix.FileCount())
	assert.Equal(t, []string{"1", "2", "3"}, ix.IDs())

	ds, ok := ix.Get("1")
	require.True(t, ok)
	assert.Equal(t, []string{"a_1.fastq", "a_2.fastq"}, ds.Paths())
	age, _ := ds.Get("age")
	assert.Equal(t, attrs.Int(65), age)

	assert.Equal(t, []string{"age", "id", "lab", "path", "sex", "size", "type", "view"}, ix.AllTags())
}

func TestLoadFormatError(t *testing.T) {
	ix := newIndex(t)
	err := ix.Load(strings.NewReader(".\tid=1; age=10;\nbroken\tid=2; age=\"10;\n"))
	require.Error(t, err)
	assert.True(t, errors.IsFormatError(err))
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadErrorLogsLine(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ix := New(format.Default(), WithLogger(zap.New(core).Sugar()))

	err := ix.Load(strings.NewReader(".\tid=1; age=10;\nbroken\tid=2; age=\"10;\n"))
	require.Error(t, err)

	rejected := logs.FilterMessage("rejected index line").All()
	require.Len(t, rejected, 1)
	assert.EqualValues(t, 2, rejected[0].ContextMap()[logger.FieldLine])
}

func TestLoadReplicatesPostponed(t *testing.T) {
	text := ".\tid=A,B; age=10; sex=M,F;\n" +
		"a.bam\tid=A; age=10; sex=M; type=bam;\n" +
		"b.bam\tid=B; age=10; sex=F; type=bam;\n"
	ix := loadIndex(t, text)

	assert.Equal(t, 3, ix.Len())
	merged, ok := ix.Get("A,B")
	require.True(t, ok)
	assert.Equal(t, "A,B", merged.ID)

	age, _ := merged.Get("age")
	assert.Equal(t, attrs.Int(10), age)
	sex, _ := merged.Get("sex")
	assert.Equal(t, attrs.Strings("M", "F"), sex)

	reps := ix.FindReplicates("A,B")
	require.Len(t, reps, 2)
	assert.Equal(t, "A", reps[0].ID)
	assert.Equal(t, "B", reps[1].ID)
}

func TestLoadTable(t *testing.T) {
	f := format.Default().WithOverrides(format.Overrides{IDDesc: "labExpId"})
	ix := New(f, WithLogger(zaptest.NewLogger(t).Sugar()))

	csv := "labExpId,path,type,age\nL1,a.bam,bam,10\nL1,b.bam,bam,10\nL2,c.bam,bam,20\n"
	require.NoError(t, ix.Load(strings.NewReader(csv)))
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, 3, ix.FileCount())

	ds, _ := ix.Get("L2")
	assert.Equal(t, []string{"c.bam"}, ds.Paths())
}

func TestLoadTableExternalHeader(t *testing.T) {
	ix := newIndex(t)
	rows := "1\ta.fastq\tFqRd1\n1\tb.fastq\tFqRd2\n"
	require.NoError(t, ix.LoadTable(strings.NewReader(rows), '\t', []string{"id", "path", "view"}))

	ds, ok := ix.Get("1")
	require.True(t, ok)
	assert.Equal(t, 2, ds.Len())
	info, _ := ds.File("a.fastq")
	assert.Equal(t, "fastq", info.GetString("type"))
}

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	ix, err := Open(path, format.Default())
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, path, ix.Path())
}

func TestOpenUnreadable(t *testing.T) {
	_, err := Open(t.TempDir(), format.Default())
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}

func TestInsert(t *testing.T) {
	ix := loadIndex(t, ".\tid=1; age=10; sex=M;\n")

	_, err := ix.Insert(rec("path", "test_1.fastq", "id", "1", "view", "FqRd1", "type", "fastq"))
	require.NoError(t, err)
	_, err = ix.Insert(rec("path", "test_2.fastq", "id", "1", "view", "FqRd2", "type", "fastq"))
	require.NoError(t, err)

	lines, err := ix.Export(ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"test_1.fastq\tage=10; id=1; sex=M; type=fastq; view=FqRd1;",
		"test_2.fastq\tage=10; id=1; sex=M; type=fastq; view=FqRd2;",
	}, lines)
}

func TestInsertIdempotent(t *testing.T) {
	ix := newIndex(t)
	r := rec("id", "1", "path", "a.bam", "view", "Alignments", "sex", "M")

	_, err := ix.Insert(r)
	require.NoError(t, err)
	before, err := ix.Export(ExportOptions{})
	require.NoError(t, err)

	ds, err := ix.Insert(r)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())

	after, err := ix.Export(ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestInsertWithoutID(t *testing.T) {
	ix := newIndex(t)

	_, err := ix.Insert(rec("view", "x"))
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	ds, err := ix.Insert(rec("path", "reads.fastq"))
	require.NoError(t, err)
	assert.Equal(t, "reads.fastq", ds.ID)
	assert.True(t, ds.HasFile("reads.fastq"))
}

func TestInsertUpdate(t *testing.T) {
	ix := loadIndex(t, fixture)

	_, err := ix.Insert(rec("id", "1", "sex", "F"))
	require.NoError(t, err)
	ds, _ := ix.Get("1")
	sex, _ := ds.Get("sex")
	assert.Equal(t, "M", sex.String(), "no update keeps metadata")

	_, err = ix.Insert(rec("id", "1", "sex", "F"), Update())
	require.NoError(t, err)
	sex, _ = ds.Get("sex")
	assert.Equal(t, "F", sex.String())

	_, err = ix.Insert(rec("id", "1", "tissue", "liver"), Update())
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.False(t, ds.HasMeta("tissue"))

	before := ds.Metadata()
	_, err = ix.Insert(rec("id", "1", "age", "99", "sex", "X", "tissue", "liver"), Update())
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.True(t, before.Equal(ds.Metadata()), "a rejected update changes nothing")

	_, err = ix.Insert(rec("id", "1", "tissue", "liver"), Update(), AddKeys())
	require.NoError(t, err)
	assert.True(t, ds.HasMeta("tissue"))

	_, err = ix.Insert(rec("id", "1", "path", "a_1.fastq", "view", "Reads"), Update())
	require.NoError(t, err)
	info, _ := ds.File("a_1.fastq")
	assert.Equal(t, "Reads", info.GetString("view"))
}

func TestInsertMissingValue(t *testing.T) {
	ix := newIndex(t)
	_, err := ix.Insert(rec("id", "4", "cell", ""))
	require.NoError(t, err)

	lines, err := ix.Export(ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{".\tcell=NA; id=4;"}, lines)

	hidden, err := ix.Export(ExportOptions{HideMissing: true})
	require.NoError(t, err)
	assert.Equal(t, []string{".\tid=4;"}, hidden)
}

func TestInsertReplicateMissingPart(t *testing.T) {
	ix := loadIndex(t, ".\tid=A; sex=M;\n")
	ds, err := ix.Insert(rec("id", "A,B", "sex", "M"))
	require.NoError(t, err)
	assert.Equal(t, "A,B", ds.ID)
	assert.Equal(t, 2, ix.Len())
}

func TestInsertReplicateWithFile(t *testing.T) {
	ix := loadIndex(t, ".\tid=A; sex=M; age=1;\n.\tid=B; sex=F; age=1;\n")
	ds, err := ix.Insert(rec("id", "A,B", "path", "merged.bam", "view", "Alignments"))
	require.NoError(t, err)

	assert.True(t, ds.HasFile("merged.bam"))
	sex, _ := ds.Get("sex")
	assert.Equal(t, attrs.Strings("M", "F"), sex)

	n, err := ix.Remove(mustQuery(t, attrs.Attrs{"path": attrs.String("merged.bam")}, true), true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := ix.Get("A,B")
	assert.False(t, ok)
}

func TestRecord(t *testing.T) {
	ix := loadIndex(t, fixture)
	r, ok := ix.Record("b.bam")
	require.True(t, ok)
	assert.Equal(t, "2", r.GetString("id"))
	assert.Equal(t, "Alignments", r.GetString("view"))
	assert.Equal(t, "b.bam", r.GetString("path"))

	_, ok = ix.Record("nope.bam")
	assert.False(t, ok)
}

func TestSaveAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "index.txt")
	ix := loadIndex(t, fixture, WithPath(path))
	require.NoError(t, ix.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"a_1.fastq\tage=65; id=1; lab=CRG; sex=M; size=100; type=fastq; view=FqRd1;\n"+
			"a_2.fastq\tage=65; id=1; lab=CRG; sex=M; size=120; type=fastq; view=FqRd2;\n"+
			"b.bam\tage=40; id=2; lab=CNAG; sex=F; size=30; type=bam; view=Alignments;\n"+
			".\tage=51; id=3; lab=CRG; sex=F;\n",
		string(data))

	reopened, err := Open(path, format.Default())
	require.NoError(t, err)
	assert.Equal(t, ix.IDs(), reopened.IDs())
	assert.Equal(t, ix.FileCount(), reopened.FileCount())

	want, _ := ix.Export(ExportOptions{})
	got, _ := reopened.Export(ExportOptions{})
	assert.Equal(t, want, got)
}

func TestSaveCompressed(t *testing.T) {
	tests := map[string][]byte{
		"index.txt.gz":  {0x1f, 0x8b},
		"index.txt.zst": {0x28, 0xb5, 0x2f, 0xfd},
	}
	for name, magic := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			ix := loadIndex(t, fixture, WithPath(path))
			require.NoError(t, ix.Save())

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, magic, raw[:len(magic)])

			reopened, err := Open(path, format.Default())
			require.NoError(t, err)
			assert.Equal(t, 3, reopened.Len())
			assert.Equal(t, 3, reopened.FileCount())
		})
	}
}

func TestSaveWithoutPath(t *testing.T) {
	err := newIndex(t).Save()
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestSaveModified(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))

	ix, err := Open(path, format.Default())
	require.NoError(t, err)

	modified, err := ix.Modified()
	require.NoError(t, err)
	assert.False(t, modified)

	require.NoError(t, os.WriteFile(path, []byte(fixture+".\tid=9;\n"), 0o644))

	modified, err = ix.Modified()
	require.NoError(t, err)
	assert.True(t, modified)

	err = ix.Save()
	require.Error(t, err)
	assert.True(t, errors.IsModifiedError(err))
}

func TestChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	tests := map[string]string{
		"md5":    "900150983cd24fb0d6963f7d28e17f72",
		"sha1":   "a9993e364706816aba3e25717850c26c9cd0d89d",
		"sha256": "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
	}
	for algo, want := range tests {
		t.Run(algo, func(t *testing.T) {
			f := format.Default().WithOverrides(format.Overrides{HashAlgorithm: algo})
			ix := New(f, WithPath(path))
			sum, err := ix.Checksum()
			require.NoError(t, err)
			assert.Equal(t, want, sum)
		})
	}
}

func TestLockRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	ix := newIndex(t, WithPath(path))

	released, err := ix.Release()
	require.NoError(t, err)
	assert.False(t, released, "release without lock")

	locked, err := ix.Lock()
	require.NoError(t, err)
	assert.True(t, locked)
	assert.True(t, ix.Locked())

	again, err := ix.Lock()
	require.NoError(t, err)
	assert.False(t, again, "second lock does not block")

	other := newIndex(t, WithPath(path))
	_, err = other.Lock()
	require.Error(t, err)
	assert.True(t, errors.IsLockError(err))

	released, err = ix.Release()
	require.NoError(t, err)
	assert.True(t, released)
	assert.NoFileExists(t, path+".lock")
}

func TestWithLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	ix := newIndex(t, WithPath(path))

	err := ix.WithLock(func(ix *Index) error {
		assert.FileExists(t, path+".lock")
		_, err := ix.Insert(rec("id", "1", "path", "a.bam"))
		return err
	})
	require.NoError(t, err)
	assert.NoFileExists(t, path+".lock")
	assert.FileExists(t, path)

	failure := errors.New("boom")
	err = ix.WithLock(func(*Index) error { return failure })
	assert.True(t, errors.Is(err, failure))
	assert.NoFileExists(t, path+".lock", "released after failure")
}
