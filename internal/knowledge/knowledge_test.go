package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableIsValid(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "embedded", table.Source())
	assert.NotEmpty(t, table.Version())
	assert.Greater(t, table.Len(), 10)

	apply, ok := table.Entry("apply")
	require.True(t, ok, "default table should carry an apply entry")
	assert.Equal(t, 97, apply.BaseConfidence)
	assert.Contains(t, apply.Keywords, "apply")
	assert.Contains(t, table.Categories(), "admissions")
}

func TestNewTableRejectsMalformedEntries(t *testing.T) {
	entries := []Entry{
		{ID: "ok", Keywords: []string{"apply"}, Response: "yes", BaseConfidence: 90},
		{ID: "no-keywords", Response: "x", BaseConfidence: 50},
		{ID: "zero", Keywords: []string{"fees"}, Response: "x", BaseConfidence: 0},
		{ID: "too-high", Keywords: []string{"fees"}, Response: "x", BaseConfidence: 101},
		{ID: "ok", Keywords: []string{"dup"}, Response: "x", BaseConfidence: 10},
		{ID: "blank-kw", Keywords: []string{"  "}, Response: "x", BaseConfidence: 10},
	}

	table, err := NewTable("v1", "test", entries)
	require.Error(t, err)
	assert.Nil(t, table)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	msg := err.Error()
	for _, want := range []string{"no-keywords", "zero", "too-high", "duplicates entry 1", "blank"} {
		assert.Contains(t, msg, want)
	}
}

func TestNewTableRejectsEmpty(t *testing.T) {
	_, err := NewTable("v1", "test", nil)
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestNewTableNormalizes(t *testing.T) {
	table, err := NewTable(" v1 ", "test", []Entry{
		{Keywords: []string{" Apply ", "APPLY", "Application"}, Response: "r", BaseConfidence: 97},
	})
	require.NoError(t, err)

	entries := table.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "entry-1", entries[0].ID)
	assert.Equal(t, "general", entries[0].Category)
	assert.Equal(t, []string{"apply", "application"}, entries[0].Keywords)
	assert.Equal(t, "v1", table.Version())
}

func TestEntriesReturnsCopy(t *testing.T) {
	table, err := NewTable("v1", "test", []Entry{
		{ID: "a", Keywords: []string{"apply"}, Response: "r", BaseConfidence: 97},
	})
	require.NoError(t, err)

	got := table.Entries()
	got[0].Keywords[0] = "mutated"
	got[0].Response = "mutated"

	again := table.Entries()
	assert.Equal(t, "apply", again[0].Keywords[0])
	assert.Equal(t, "r", again[0].Response)
}

func TestParseYAMLRejectsUnknownFields(t *testing.T) {
	_, err := ParseYAML([]byte("version: v1\nentries:\n  - keywords: [a]\n    respnse: typo\n    confidence: 10\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "respnse")
}

func TestLoadFilesGlob(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, filepath.Join(dir, "b", "fees.yaml"), "v2", "fees", "fee")
	writeRuleFile(t, filepath.Join(dir, "a", "apply.yaml"), "v1", "apply", "apply")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	table, err := LoadFiles(filepath.Join(dir, "**", "*.yaml"))
	require.NoError(t, err)

	entries := table.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "apply", entries[0].ID, "files load in lexical path order")
	assert.Equal(t, "fees", entries[1].ID)
	assert.Equal(t, "v1+v2", table.Version())
}

func TestLoadFilesNoMatch(t *testing.T) {
	_, err := LoadFiles(filepath.Join(t.TempDir(), "*.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rule files")
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "knowledge.db"))
	require.NoError(t, err)
	defer store.Close()

	want, err := Default()
	require.NoError(t, err)
	require.NoError(t, store.Replace(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, want.Version(), got.Version())
	assert.Equal(t, "sqlite", got.Source())
	if diff := cmp.Diff(want.Entries(), got.Entries(), cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}

	// Replace is a full swap, not a merge.
	small, err := NewTable("v-small", "test", []Entry{
		{ID: "only", Keywords: []string{"only"}, Response: "r", BaseConfidence: 50},
	})
	require.NoError(t, err)
	require.NoError(t, store.Replace(ctx, small))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
	assert.Equal(t, "v-small", got.Version())
}

func TestSchemaDescribesRuleFile(t *testing.T) {
	out, err := Schema()
	require.NoError(t, err)
	s := string(out)
	for _, want := range []string{"entries", "keywords", "confidence", "follow_ups", "action_id"} {
		assert.Contains(t, s, want)
	}
}

func TestResolveMode(t *testing.T) {
	cases := []struct {
		name string
		opts SourceOptions
		want string
	}{
		{"default embedded", SourceOptions{}, ModeEmbedded},
		{"auto with database", SourceOptions{Mode: "auto", DatabaseURL: "postgres://x"}, ModePostgres},
		{"auto with sqlite", SourceOptions{SQLitePath: "k.db"}, ModeSQLite},
		{"auto with files", SourceOptions{Patterns: []string{"k/*.yaml"}}, ModeFile},
		{"explicit wins", SourceOptions{Mode: "FILE", DatabaseURL: "postgres://x"}, ModeFile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveMode(tc.opts))
		})
	}
}

func TestOpenSourceRejectsUnknownMode(t *testing.T) {
	_, closeFn, err := OpenSource(context.Background(), SourceOptions{Mode: "redis"}, nil)
	require.Error(t, err)
	require.NotNil(t, closeFn)
}

func TestRegistrySwapRunsHooks(t *testing.T) {
	first, err := Default()
	require.NoError(t, err)
	reg := NewRegistry(first)

	var seen []string
	reg.OnSwap(func(t *Table) { seen = append(seen, t.Version()) })

	next, err := NewTable("next", "test", []Entry{
		{ID: "a", Keywords: []string{"a"}, Response: "r", BaseConfidence: 10},
	})
	require.NoError(t, err)

	reg.Swap(nil)
	assert.Same(t, first, reg.Current(), "nil swap is ignored")
	reg.Swap(next)
	assert.Same(t, next, reg.Current())
	assert.Equal(t, []string{"next"}, seen)
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeRuleFile(t, path, "v1", "apply", "apply")

	pattern := filepath.Join(dir, "*.yaml")
	initial, err := LoadFiles(pattern)
	require.NoError(t, err)
	reg := NewRegistry(initial)

	w, err := NewWatcher([]string{pattern}, reg, nil)
	require.NoError(t, err)
	w.SetDebounce(30 * time.Millisecond)

	reloadErrs := make(chan error, 8)
	w.OnReload(func(_ *Table, err error) {
		select {
		case reloadErrs <- err:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	writeRuleFile(t, path, "v2", "apply", "apply")
	require.Eventually(t, func() bool {
		return reg.Current().Version() == "v2"
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("version: v3\nentries:\n  - keywords: []\n    response: x\n    confidence: 500\n"), 0o644))
	var lastErr error
	require.Eventually(t, func() bool {
		select {
		case lastErr = <-reloadErrs:
			return lastErr != nil
		default:
			return false
		}
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "v2", reg.Current().Version(), "invalid reload keeps the previous table")
}

func TestWatcherWatchesOnlyWhatPatternsReach(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, filepath.Join(dir, "rules.yaml"), "v1", "apply", "apply")
	writeRuleFile(t, filepath.Join(dir, "nested", "deep", "more.yaml"), "v1", "fees", "fees")
	t.Chdir(dir)

	initial, err := LoadFiles("rules.yaml")
	require.NoError(t, err)
	reg := NewRegistry(initial)

	literal, err := NewWatcher([]string{"rules.yaml"}, reg, nil)
	require.NoError(t, err)
	defer literal.watcher.Close()
	assert.Equal(t, []string{"."}, literal.WatchedDirs())
	assert.False(t, literal.inTree(filepath.Join("nested", "new")))

	tree, err := NewWatcher([]string{"nested/**/*.yaml"}, reg, nil)
	require.NoError(t, err)
	defer tree.watcher.Close()
	assert.ElementsMatch(t, []string{"nested", filepath.Join("nested", "deep")}, tree.WatchedDirs())
	assert.True(t, tree.inTree(filepath.Join("nested", "new")))
	assert.False(t, tree.inTree("elsewhere"))
}

func writeRuleFile(t *testing.T, path, version, id, keyword string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	body := strings.Join([]string{
		"version: " + version,
		"entries:",
		"  - id: " + id,
		"    keywords: [" + keyword + "]",
		"    response: response for " + id,
		"    confidence: 90",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}
