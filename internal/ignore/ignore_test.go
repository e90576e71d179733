package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{"empty line", "", ""},
		{"whitespace only", "   ", ""},
		{"comment", "# this is a comment", ""},
		{"negation kept", "!keep.md", "!keep.md"},
		{"escaped hash", `\#tag.md`, "#tag.md"},
		{"trailing whitespace", "drafts/  \r", "drafts/"},
		{"glob", "*.canvas", "*.canvas"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLine(tt.line); got != tt.expected {
				t.Errorf("parseLine(%q) = %q, want %q", tt.line, got, tt.expected)
			}
		})
	}
}

func TestParseVault(t *testing.T) {
	tmpDir := t.TempDir()

	vaultignore := "# private notes\nPrivate/\nTemplates/\n"
	gitignore := ".obsidian/\nTemplates/\n*.tmp.md\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".vaultignore"), []byte(vaultignore), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		t.Fatal(err)
	}

	parser := NewParser(DefaultIgnoreFiles, DefaultFallbackPatterns)
	patterns, err := parser.ParseVault(tmpDir)
	if err != nil {
		t.Fatalf("ParseVault failed: %v", err)
	}

	want := []string{"Private/", "Templates/", ".obsidian/", "*.tmp.md"}
	if len(patterns) != len(want) {
		t.Fatalf("got %v, want %v", patterns, want)
	}
	for i := range want {
		if patterns[i] != want[i] {
			t.Errorf("pattern[%d] = %q, want %q", i, patterns[i], want[i])
		}
	}
}

func TestParseVault_NoIgnoreFiles(t *testing.T) {
	parser := NewParser(DefaultIgnoreFiles, DefaultFallbackPatterns)

	patterns, err := parser.ParseVault(t.TempDir())
	if err != nil {
		t.Fatalf("ParseVault failed: %v", err)
	}
	if len(patterns) != len(DefaultFallbackPatterns) {
		t.Errorf("expected fallback patterns, got %v", patterns)
	}
}

func TestMatcher(t *testing.T) {
	m, err := Compile([]string{
		".obsidian/",
		".trash/",
		"*.excalidraw.md",
		"/Archive",
		"Journal/20*/",
		"drafts",
		"!drafts/keep.md",
		"**/tmp/**",
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{".obsidian", true, true},
		{".obsidian/workspace.md", false, true},
		{"Notes/.trash/old.md", false, true},
		{"Notes/drawing.excalidraw.md", false, true},
		{"Notes/drawing.md", false, false},
		{"Archive/2019.md", false, true},
		{"Notes/Archive/2019.md", false, false},
		{"Journal/2024/jan.md", false, true},
		{"Journal/index.md", false, false},
		{"drafts/idea.md", false, true},
		{"Projects/drafts", false, true},
		// a file inside an ignored directory cannot be re-included
		{"drafts/keep.md", false, true},
		{"a/tmp/b/c.md", false, true},
		{"Projects/plan.md", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := m.Match(tt.path, tt.isDir); got != tt.want {
				t.Errorf("Match(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
			}
		})
	}
}

func TestMatcher_Negation(t *testing.T) {
	m, err := Compile([]string{"*.md", "!README.md"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if m.Match("docs/README.md", false) {
		t.Error("README.md should be re-included")
	}
	if !m.Match("docs/other.md", false) {
		t.Error("other.md should be ignored")
	}
}

func TestMatcher_DirOnly(t *testing.T) {
	m, err := Compile([]string{"attachments/"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if m.Match("attachments", false) {
		t.Error("a file named attachments should not match a directory-only pattern")
	}
	if !m.Match("Notes/attachments/a.md", false) {
		t.Error("files under attachments/ should be ignored")
	}
}

func TestCompile_InvalidPattern(t *testing.T) {
	if _, err := Compile([]string{"[abc"}); err == nil {
		t.Error("expected error for unterminated character class")
	}
}

func TestMatcher_Nil(t *testing.T) {
	var m *Matcher
	if m.Match("anything.md", false) {
		t.Error("nil matcher should match nothing")
	}
}

func TestDeduplicate(t *testing.T) {
	input := []string{"a", "b", "a", "c", "b", "d"}
	expected := []string{"a", "b", "c", "d"}

	result := deduplicate(input)
	if len(result) != len(expected) {
		t.Fatalf("got %d items, want %d", len(result), len(expected))
	}
	for i, v := range result {
		if v != expected[i] {
			t.Errorf("result[%d] = %q, want %q", i, v, expected[i])
		}
	}
}
