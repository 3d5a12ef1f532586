package resource

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/table"
	"github.com/zclconf/go-cty/cty"
)

func numbers(n int) *table.Table {
	t := table.New("number")
	for i := 0; i < n; i++ {
		_ = t.Append(i)
	}
	return t
}

func TestArtifact_SaveCheckLoadDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rc := runctx.New(map[string]cty.Value{"clusters": cty.NumberIntVal(3)})

	res := New("numbers", "data/clusters={clusters}/numbers.csv", LocalStore{Root: dir}, CSVCodec{}, WithColumns("number"))

	ok, err := res.Check(ctx, rc)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, res.Save(ctx, rc, numbers(3)))
	assert.FileExists(t, filepath.Join(dir, "data", "clusters=3", "numbers.csv"))

	ok, err = res.Check(ctx, rc)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := res.Load(ctx, rc)
	require.NoError(t, err)
	tbl, ok := data.(*table.Table)
	require.True(t, ok)
	assert.Equal(t, []string{"number"}, tbl.Columns)
	assert.Equal(t, 3, tbl.Len())

	require.NoError(t, res.Delete(ctx, rc))
	ok, err = res.Check(ctx, rc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArtifact_SaveValidatesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rc := runctx.New(nil)
	res := New("squares", "squares.csv", LocalStore{Root: dir}, CSVCodec{}, WithColumns("number", "square"))

	err := res.Save(ctx, rc, numbers(2))
	var verr *table.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "squares", verr.Resource)
	assert.Contains(t, err.Error(), "column set mismatch")
	assert.NoFileExists(t, filepath.Join(dir, "squares.csv"))
}

func TestArtifact_LoadValidatesAfterReading(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw.csv"), []byte("id,value\n1,\n"), 0o644))

	res := New("raw", "raw.csv", LocalStore{Root: dir}, CSVCodec{}, WithTableChecks(table.NotNull()))
	_, err := res.Load(ctx, runctx.New(nil))
	require.ErrorContains(t, err, "resource <raw>: column \"value\": null values present")
}

func TestArtifact_LoadMissingIsNotFound(t *testing.T) {
	res := CSV("raw", filepath.Join(t.TempDir(), "absent.csv"))
	_, err := res.Load(context.Background(), runctx.New(nil))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestArtifact_TemplatingErrorIsFatal(t *testing.T) {
	res := CSV("model", "data/clusters={clusters}/model.csv")
	_, err := res.Check(context.Background(), runctx.New(nil))
	require.ErrorIs(t, err, runctx.ErrMissingParam)
	assert.Contains(t, err.Error(), "resource <model>")
}

func TestArtifact_ReadOnlyRefusesDelete(t *testing.T) {
	res := CSV("raw", "raw.csv", ReadOnly())
	err := res.Delete(context.Background(), runctx.New(nil))
	require.ErrorIs(t, err, ErrDeleteUnsupported)
	assert.Contains(t, err.Error(), "could not delete resource <raw>")
}

func TestArtifact_CustomAssertionsAreAllReported(t *testing.T) {
	failA := func(any) error { return errors.New("first") }
	failB := func(any) error { return &table.ValidationError{Reason: "second"} }
	res := CSV("x", "x.csv", WithAssertions(failA, failB))

	err := res.Validate(numbers(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource <x>: first")
	assert.Contains(t, err.Error(), "resource <x>: second")
}

func TestTableAssertion_RejectsNonTables(t *testing.T) {
	err := TableAssertion(table.NotNull())(map[string]int{"a": 1})
	assert.ErrorContains(t, err, "expected tabular data, got map[string]int")
}

func TestLocalStore_FailedWriteLeavesNothingBehind(t *testing.T) {
	dir := t.TempDir()
	store := LocalStore{Root: dir}

	err := store.Write(context.Background(), "out/model.bin", func(w io.Writer) error {
		_, _ = w.Write([]byte("half"))
		return errors.New("encoder exploded")
	})
	require.ErrorContains(t, err, "encoder exploded")

	ok, err := store.Exists(context.Background(), "out/model.bin")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files must be cleaned up")
}

func TestLocalStore_DirectoriesDoNotCountAsArtifacts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a.csv"), 0o755))
	ok, err := LocalStore{Root: dir}.Exists(context.Background(), "a.csv")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStore_RemoveMissing(t *testing.T) {
	err := LocalStore{Root: t.TempDir()}.Remove(context.Background(), "gone.csv")
	require.ErrorIs(t, err, ErrNotFound)
}
