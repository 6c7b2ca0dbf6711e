package taxonomy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const customTable = `
version: "team-v2"
default_category: Ops
categories:
  - name: Growth
    prototype: "sales revenue customers"
    color: "#000000"
  - name: Ops
    prototype: "operations upkeep"
reversibility_rules:
  - name: acquisition
    pattern: '\bacquir(e|ing)\b'
`

func TestParseYAML(t *testing.T) {
	table, err := ParseYAML([]byte(customTable))
	require.NoError(t, err)

	assert.Equal(t, "team-v2", table.Version)
	assert.Equal(t, "Ops", table.DefaultCategory)
	assert.Equal(t, []string{"Growth", "Ops"}, table.Names())
	require.Len(t, table.Rules, 1)
	assert.True(t, table.Rules[0].Match("We are ACQUIRING a competitor"))
	assert.False(t, table.Rules[0].Match("sign a lease"))
}

func TestParseYAML_DefaultsRulesAndVersion(t *testing.T) {
	content := []byte(`
categories:
  - name: Only
    prototype: "everything"
`)
	table, err := ParseYAML(content)
	require.NoError(t, err)

	assert.Equal(t, "Only", table.DefaultCategory)
	assert.Contains(t, table.Version, "file-")
	assert.Len(t, table.Rules, len(DefaultTable().Rules))

	again, err := ParseYAML(content)
	require.NoError(t, err)
	assert.Equal(t, table.Version, again.Version)
}

func TestParseYAML_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "no categories", content: "version: x\n"},
		{name: "missing prototype", content: "categories:\n  - name: A\n"},
		{name: "duplicate names", content: "categories:\n  - name: A\n    prototype: a\n  - name: A\n    prototype: b\n"},
		{name: "unknown default", content: "default_category: Z\ncategories:\n  - name: A\n    prototype: a\n"},
		{name: "bad regex", content: "categories:\n  - name: A\n    prototype: a\nreversibility_rules:\n  - name: r\n    pattern: '(unclosed'\n"},
		{name: "bad yaml", content: "categories: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.content))
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	assert.Equal(t, []string{
		CategoryRevenueGrowth, CategoryMaintenance, CategoryBrand, CategoryAdmin, CategoryStrategy,
	}, table.Names())
	assert.Equal(t, CategoryStrategy, table.DefaultCategory)
	assert.Len(t, table.Rules, 8)
	assert.Same(t, table, table.Current())
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(customTable), 0600))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, "team-v2", w.Current().Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// An invalid edit keeps the old table.
	require.NoError(t, os.WriteFile(path, []byte("categories: [\n"), 0600))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "team-v2", w.Current().Version)

	updated := []byte("version: team-v3\ncategories:\n  - name: Solo\n    prototype: all work\n")
	require.NoError(t, os.WriteFile(path, updated, 0600))

	require.Eventually(t, func() bool {
		return w.Current().Version == "team-v3"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"Solo"}, w.Current().Names())
	assert.GreaterOrEqual(t, w.Reloads(), int64(1))
}

func TestNewWatcher_MissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
