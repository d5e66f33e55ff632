package convert

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"mkd/config"
	"mkd/state"
)

func setupTestEnvForOutputPath(t *testing.T, noDirs bool, transliterate bool, template string) *state.LocalEnv {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Render.FileNameTransliterate = transliterate
	cfg.Render.OutputNameTemplate = template

	env := &state.LocalEnv{
		Log:    logger,
		Cfg:    cfg,
		NoDirs: noDirs,
	}
	return env
}

func setupTestDocument(src string) *document {
	return &document{src: src, title: "Test Document", owner: "0xabc"}
}

func TestBuildOutputPath_SimpleCase_NoDirs(t *testing.T) {
	env := setupTestEnvForOutputPath(t, true, false, "")

	result := buildOutputPath(setupTestDocument("notes/project/readme.md"), "/output", env)
	expected := filepath.Join("/output", "readme.html")

	if result != expected {
		t.Errorf("buildOutputPath() = %q, want %q", result, expected)
	}
}

func TestBuildOutputPath_SimpleCase_WithDirs(t *testing.T) {
	env := setupTestEnvForOutputPath(t, false, false, "")

	result := buildOutputPath(setupTestDocument("notes/project/readme.md"), "/output", env)
	expected := filepath.Join("/output", "notes", "project", "readme.html")

	if result != expected {
		t.Errorf("buildOutputPath() = %q, want %q", result, expected)
	}
}

func TestBuildOutputPath_Transliterate(t *testing.T) {
	env := setupTestEnvForOutputPath(t, true, true, "")

	result := buildOutputPath(setupTestDocument("Заметка.md"), "/output", env)
	expected := filepath.Join("/output", "zametka.html")

	if result != expected {
		t.Errorf("buildOutputPath() = %q, want %q", result, expected)
	}
}

func TestBuildOutputPath_Template(t *testing.T) {
	env := setupTestEnvForOutputPath(t, false, false, `{{ .Owner }}/{{ .Slug }}`)

	result := buildOutputPath(setupTestDocument("notes/readme.md"), "/output", env)
	expected := filepath.Join("/output", "notes", "0xabc", "test-document.html")

	if result != expected {
		t.Errorf("buildOutputPath() = %q, want %q", result, expected)
	}
}

func TestBuildOutputPath_BrokenTemplate(t *testing.T) {
	env := setupTestEnvForOutputPath(t, true, false, `{{ .Unknown }`)

	result := buildOutputPath(setupTestDocument("readme.md"), "/output", env)
	expected := filepath.Join("/output", "readme.html")

	if result != expected {
		t.Errorf("buildOutputPath() = %q, want %q", result, expected)
	}
}

func TestMakeOutputDir_NoDirs(t *testing.T) {
	env := setupTestEnvForOutputPath(t, true, false, "")

	result := makeOutputDir("notes/project/readme.md", "/output", env)
	expected := "/output"

	if result != expected {
		t.Errorf("makeOutputDir() = %q, want %q", result, expected)
	}
}

func TestMakeOutputDir_WithDirs(t *testing.T) {
	env := setupTestEnvForOutputPath(t, false, false, "")

	result := makeOutputDir("notes/project/readme.md", "/output", env)
	expected := filepath.Join("/output", "notes", "project")

	if result != expected {
		t.Errorf("makeOutputDir() = %q, want %q", result, expected)
	}
}

func TestMakeDefaultFileName(t *testing.T) {
	tests := []struct {
		name          string
		src           string
		transliterate bool
		expected      string
	}{
		{"simple", "readme.md", false, "readme.html"},
		{"with path", "path/to/readme.md", false, "readme.html"},
		{"long extension", "guide.markdown", false, "guide.html"},
		{"transliterate", "Заметка.md", true, "zametka.html"},
		{"standard input", "-", false, "-.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForOutputPath(t, true, tt.transliterate, "")

			result := makeDefaultFileName(tt.src, env)
			if result != tt.expected {
				t.Errorf("makeDefaultFileName() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestSplitPathSegments(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{"simple path", "owner/doc", []string{"owner", "doc"}},
		{"single segment", "doc", []string{"doc"}},
		{"with trailing slash", "owner/doc/", []string{"owner", "doc"}},
		{"three levels", "year/owner/doc", []string{"year", "owner", "doc"}},
		{"empty path", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitPathSegments(filepath.FromSlash(tt.path))
			if len(result) != len(tt.expected) {
				t.Errorf("splitPathSegments() length = %d, want %d", len(result), len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("splitPathSegments()[%d] = %q, want %q", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestCleanPathSegment(t *testing.T) {
	tests := []struct {
		name          string
		segment       string
		transliterate bool
		expected      string
	}{
		{"simple segment", "notes", false, "notes"},
		{"with spaces", "My Notes", false, "My Notes"},
		{"transliterate cyrillic", "Заметки", true, "zametki"},
		{"special chars", "doc:name", false, "docname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForOutputPath(t, true, tt.transliterate, "")

			result := cleanPathSegment(tt.segment, env)
			if result != tt.expected {
				t.Errorf("cleanPathSegment() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestMakeFullPath(t *testing.T) {
	tests := []struct {
		name          string
		expandedName  string
		transliterate bool
		expected      string
	}{
		{"nested", "owner/doc", false, filepath.Join("/output", "owner", "doc.html")},
		{"single level", "doc", false, filepath.Join("/output", "doc.html")},
		{"with transliterate", "Автор/Заметка", true, filepath.Join("/output", "avtor", "zametka.html")},
		{"empty", "", false, "/output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForOutputPath(t, true, tt.transliterate, "")

			result := makeFullPath("/output", filepath.FromSlash(tt.expandedName), env)
			if result != tt.expected {
				t.Errorf("makeFullPath() = %q, want %q", result, tt.expected)
			}
		})
	}
}
