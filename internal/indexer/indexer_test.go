package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnippet(t *testing.T) {
	long := strings.Repeat("word ", 300)

	tests := []struct {
		name     string
		content  string
		maxWords int
		minChars int
		want     string
		wantOK   bool
	}{
		{
			name:     "frontmatter description wins",
			content:  "---\ntitle: x\ndescription: A note about gardening tomatoes\n---\nbody text here",
			maxWords: 200,
			want:     "A note about gardening tomatoes",
			wantOK:   true,
		},
		{
			name:     "frontmatter without description is skipped",
			content:  "---\ntags: [a, b]\n---\nthe body of the note",
			maxWords: 200,
			want:     "the body of the note",
			wantOK:   true,
		},
		{
			name:     "first n words",
			content:  "one two\nthree four five",
			maxWords: 3,
			want:     "one two three",
			wantOK:   true,
		},
		{
			name:     "base64 image lines dropped",
			content:  "intro\n![img](data:image/png;base64,AAAA)\noutro",
			maxWords: 200,
			want:     "intro outro",
			wantOK:   true,
		},
		{
			name:     "too short",
			content:  "tiny",
			maxWords: 200,
			minChars: 30,
			wantOK:   false,
		},
		{
			name:     "long note is truncated",
			content:  long,
			maxWords: 200,
			minChars: 30,
			want:     strings.TrimSpace(strings.Repeat("word ", 200)),
			wantOK:   true,
		},
		{
			name:     "invalid yaml falls back to body",
			content:  "---\ndescription: [unclosed\n---\nbody words",
			maxWords: 200,
			want:     "body words",
			wantOK:   true,
		},
		{
			name:     "unterminated frontmatter is body",
			content:  "---\nno closing delimiter",
			maxWords: 200,
			want:     "no closing delimiter",
			wantOK:   true,
		},
		{
			name:     "empty",
			content:  "",
			maxWords: 200,
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := Snippet(strings.NewReader(tt.content), tt.maxWords, tt.minChars)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func writeNote(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestScanner_Scan(t *testing.T) {
	root := t.TempDir()
	body := "This note has more than enough characters to be indexed."

	writeNote(t, root, "Inbox/idea.md", body)
	writeNote(t, root, "Projects/Garden/plan.MD", body)
	writeNote(t, root, "Projects/Garden/image.png", "binary")
	writeNote(t, root, "Projects/short.md", "tiny")
	writeNote(t, root, ".obsidian/workspace.md", body)
	writeNote(t, root, "Private/secret.md", body)
	writeNote(t, root, ".vaultignore", "Private/\n.obsidian/\n")
	writeNote(t, root, "Known/old.md", body)

	s := New(Options{Known: map[string]struct{}{"Known/old.md": {}}}, nil)
	res, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Inbox/idea.md":           body,
		"Projects/Garden/plan.MD": body,
	}, res.Snippets)
	assert.Equal(t, 1, res.Known)
	assert.Equal(t, 1, res.Short)
	assert.Equal(t, 2, res.Ignored)
}

func TestScanner_ForceReindexesKnown(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "a.md", "A note that is long enough to keep around.")

	s := New(Options{Known: map[string]struct{}{"a.md": {}}, Force: true}, nil)
	res, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Contains(t, res.Snippets, "a.md")
}

func TestScanner_SkipsInvalidUTF8(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "bad.md", string([]byte{0xff, 0xfe, 0xfd}))

	res, err := New(Options{MinChars: -1}, nil).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, res.Snippets)
	assert.Equal(t, []string{"bad.md"}, res.Skipped)
}

func TestScanner_FallbackPatterns(t *testing.T) {
	root := t.TempDir()
	body := "This note has more than enough characters to be indexed."
	writeNote(t, root, ".trash/deleted.md", body)
	writeNote(t, root, "kept.md", body)

	res, err := New(Options{}, nil).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept.md"}, keys(res.Snippets))
}

func TestScanner_RootMustBeDirectory(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "file.md", "x")

	_, err := New(Options{}, nil).Scan(context.Background(), filepath.Join(root, "file.md"))
	assert.Error(t, err)
}

func TestScanner_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "a.md", "A note that is long enough to keep around.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}, nil).Scan(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
