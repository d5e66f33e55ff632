package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"

	"mkd/config"
	"mkd/library"
	"mkd/state"
)

const sampleSource = "# Sample\n\n- one\n- two\n\n> [card]\n  **bold** text\n"

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	return ctx, env
}

func testLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func readerForEncoding(t *testing.T, data []byte, enc srcEncoding) *bytes.Reader {
	t.Helper()
	var encoded []byte
	switch enc {
	case encUnknown:
		encoded = data
	case encUTF8:
		encoded = append([]byte{0xEF, 0xBB, 0xBF}, data...)
	case encUTF16BigEndian:
		encoded = encodeWithTransformer(t, data, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder())
	case encUTF16LittleEndian:
		encoded = encodeWithTransformer(t, data, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder())
	case encUTF32BigEndian:
		encoded = encodeWithTransformer(t, data, utf32.UTF32(utf32.BigEndian, utf32.UseBOM).NewEncoder())
	case encUTF32LittleEndian:
		encoded = encodeWithTransformer(t, data, utf32.UTF32(utf32.LittleEndian, utf32.UseBOM).NewEncoder())
	default:
		t.Fatalf("unsupported encoding: %v", enc)
	}
	return bytes.NewReader(encoded)
}

func encodeWithTransformer(t *testing.T, data []byte, encoder transform.Transformer) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := transform.NewWriter(&buf, encoder)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("encode sample: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("finalize encoded sample: %v", err)
	}
	return buf.Bytes()
}

func writeSource(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected output %s: %v", path, err)
	}
	return strings.TrimSpace(string(data))
}

// TestProcess_NonExistentPath tests process with non-existent path
func TestProcess_NonExistentPath(t *testing.T) {
	ctx, _ := setupTestEnv(t)

	err := process(ctx, "/nonexistent/path/file.md", t.TempDir(), testLogger(t))
	if err == nil {
		t.Fatal("Expected error for non-existent path, got nil")
	}
	expectedMsg := "input source was not found"
	if !strings.Contains(err.Error(), expectedMsg) {
		t.Errorf("Expected error containing '%s', got: %v", expectedMsg, err)
	}
}

// TestProcess_CancelledContext tests process with cancelled context
func TestProcess_CancelledContext(t *testing.T) {
	ctx, _ := setupTestEnv(t)
	cancelCtx, cancel := context.WithCancel(ctx)
	cancel() // Cancel immediately

	tmpDir := t.TempDir()
	err := process(cancelCtx, tmpDir, tmpDir, testLogger(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

// TestProcess_Directory tests process with a directory tree
func TestProcess_Directory(t *testing.T) {
	ctx, _ := setupTestEnv(t)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	writeSource(t, filepath.Join(srcDir, "doc.md"), sampleSource)
	writeSource(t, filepath.Join(srcDir, "nested", "sub.markdown"), "## Sub\n")
	writeSource(t, filepath.Join(srcDir, "notes.txt"), "# not rendered\n")

	if err := process(ctx, srcDir, dstDir, testLogger(t)); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	got := readOutput(t, filepath.Join(dstDir, "doc.html"))
	for _, want := range []string{"<h1>Sample</h1>", "<li>one</li>", `<div class="card">`, "<strong>bold</strong>"} {
		if !strings.Contains(got, want) {
			t.Errorf("output does not contain %q:\n%s", want, got)
		}
	}
	if got := readOutput(t, filepath.Join(dstDir, "nested", "sub.html")); got != "<h2>Sub</h2>" {
		t.Errorf("nested output = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dstDir, "notes.html")); !os.IsNotExist(err) {
		t.Errorf("text file should not be rendered, stat error = %v", err)
	}
}

// TestProcess_DirectoryNoDirs tests flattening of output structure
func TestProcess_DirectoryNoDirs(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.NoDirs = true

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	writeSource(t, filepath.Join(srcDir, "a", "b", "deep.md"), "text\n")

	if err := process(ctx, srcDir, dstDir, testLogger(t)); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	readOutput(t, filepath.Join(dstDir, "deep.html"))
}

// TestProcess_DirectoryWithTail tests process with directory path that has a tail
func TestProcess_DirectoryWithTail(t *testing.T) {
	ctx, _ := setupTestEnv(t)

	srcDir := t.TempDir()
	err := process(ctx, filepath.Join(srcDir, "missing.md"), t.TempDir(), testLogger(t))
	if err == nil {
		t.Fatal("Expected error for directory with tail, got nil")
	}
	if !strings.Contains(err.Error(), "input source was not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestProcess_SingleFile tests process with single file in every supported
// encoding
func TestProcess_SingleFile(t *testing.T) {
	encodings := []srcEncoding{encUnknown, encUTF8, encUTF16BigEndian, encUTF16LittleEndian, encUTF32BigEndian, encUTF32LittleEndian}
	for _, enc := range encodings {
		t.Run(enc.String(), func(t *testing.T) {
			ctx, _ := setupTestEnv(t)

			srcDir := t.TempDir()
			dstDir := t.TempDir()
			data, err := io.ReadAll(readerForEncoding(t, []byte("# Привет\n"), enc))
			if err != nil {
				t.Fatal(err)
			}
			src := filepath.Join(srcDir, "hello.md")
			if err := os.WriteFile(src, data, 0644); err != nil {
				t.Fatal(err)
			}

			if err := process(ctx, src, dstDir, testLogger(t)); err != nil {
				t.Fatalf("process() error = %v", err)
			}
			if got := readOutput(t, filepath.Join(dstDir, "hello.html")); got != "<h1>Привет</h1>" {
				t.Errorf("output = %q", got)
			}
		})
	}
}

// TestProcess_Archive tests process with zip archive
func TestProcess_Archive(t *testing.T) {
	ctx, _ := setupTestEnv(t)

	zipPath := filepath.Join(t.TempDir(), "docs.zip")
	dstDir := t.TempDir()
	writeZip(t, zipPath, map[string][]byte{
		"guide/intro.md":  []byte("# Intro\n"),
		"guide/usage.md":  []byte("*usage*\n"),
		"other/readme.md": []byte("~~old~~\n"),
		"image.png":       {0x89, 'P', 'N', 'G'},
	})

	if err := process(ctx, zipPath, dstDir, testLogger(t)); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readOutput(t, filepath.Join(dstDir, "guide", "intro.html")); got != "<h1>Intro</h1>" {
		t.Errorf("intro = %q", got)
	}
	if got := readOutput(t, filepath.Join(dstDir, "guide", "usage.html")); got != "<em>usage</em>" {
		t.Errorf("usage = %q", got)
	}
	if got := readOutput(t, filepath.Join(dstDir, "other", "readme.html")); got != "<del>old</del>" {
		t.Errorf("readme = %q", got)
	}
}

// TestProcess_ArchiveWithPath tests process with path inside archive
func TestProcess_ArchiveWithPath(t *testing.T) {
	ctx, _ := setupTestEnv(t)

	zipPath := filepath.Join(t.TempDir(), "docs.zip")
	dstDir := t.TempDir()
	writeZip(t, zipPath, map[string][]byte{
		"guide/intro.md":  []byte("# Intro\n"),
		"other/readme.md": []byte("# Readme\n"),
	})

	if err := process(ctx, filepath.Join(zipPath, "guide"), dstDir, testLogger(t)); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	readOutput(t, filepath.Join(dstDir, "guide", "intro.html"))
	if _, err := os.Stat(filepath.Join(dstDir, "other", "readme.html")); !os.IsNotExist(err) {
		t.Errorf("document outside of requested path rendered, stat error = %v", err)
	}
}

// TestProcess_NonMarkdownFile tests process with unsupported file
func TestProcess_NonMarkdownFile(t *testing.T) {
	ctx, _ := setupTestEnv(t)

	src := filepath.Join(t.TempDir(), "notes.txt")
	writeSource(t, src, "# text\n")

	err := process(ctx, src, t.TempDir(), testLogger(t))
	if err == nil || !strings.Contains(err.Error(), "not recognized as markdown source") {
		t.Errorf("Expected recognition error, got %v", err)
	}
}

// TestProcess_EmptyDirectory tests process with empty directory
func TestProcess_EmptyDirectory(t *testing.T) {
	ctx, _ := setupTestEnv(t)

	if err := process(ctx, t.TempDir(), t.TempDir(), testLogger(t)); err != nil {
		t.Errorf("process() error = %v", err)
	}
}

// TestProcess_ExistingOutput tests overwrite protection
func TestProcess_ExistingOutput(t *testing.T) {
	ctx, env := setupTestEnv(t)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	writeSource(t, filepath.Join(srcDir, "a.md"), "# New\n")
	writeSource(t, filepath.Join(dstDir, "a.html"), "old")

	err := process(ctx, filepath.Join(srcDir, "a.md"), dstDir, testLogger(t))
	if err == nil || !strings.Contains(err.Error(), "output file already exists") {
		t.Fatalf("Expected existing output error, got %v", err)
	}
	if got := readOutput(t, filepath.Join(dstDir, "a.html")); got != "old" {
		t.Errorf("existing output modified: %q", got)
	}

	env.Overwrite = true
	if err := process(ctx, filepath.Join(srcDir, "a.md"), dstDir, testLogger(t)); err != nil {
		t.Fatalf("process() with overwrite error = %v", err)
	}
	if got := readOutput(t, filepath.Join(dstDir, "a.html")); got != "<h1>New</h1>" {
		t.Errorf("output = %q", got)
	}
}

// TestProcess_FailuresAreAggregated tests that one bad document does not stop
// others
func TestProcess_FailuresAreAggregated(t *testing.T) {
	ctx, _ := setupTestEnv(t)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	writeSource(t, filepath.Join(srcDir, "a.md"), "# A\n")
	writeSource(t, filepath.Join(srcDir, "b.md"), "# B\n")
	writeSource(t, filepath.Join(dstDir, "a.html"), "old")

	err := process(ctx, srcDir, dstDir, testLogger(t))
	if err == nil || !strings.Contains(err.Error(), "1 of 2 documents failed") {
		t.Fatalf("Expected aggregated error, got %v", err)
	}
	if got := readOutput(t, filepath.Join(dstDir, "b.html")); got != "<h1>B</h1>" {
		t.Errorf("b = %q", got)
	}
}

// TestProcess_Standalone tests wrapping output into complete page
func TestProcess_Standalone(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Standalone = true

	src := filepath.Join(t.TempDir(), "page.md")
	dstDir := t.TempDir()
	writeSource(t, src, "# Tom & Jerry\n\ntext\n")

	if err := process(ctx, src, dstDir, testLogger(t)); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readOutput(t, filepath.Join(dstDir, "page.html"))
	for _, want := range []string{"<!DOCTYPE html>", "<title>Tom &amp; Jerry</title>", ".ai-error", "<h1>Tom & Jerry</h1>"} {
		if !strings.Contains(got, want) {
			t.Errorf("page does not contain %q:\n%s", want, got)
		}
	}
}

// TestProcess_OutputTemplate tests output name template
func TestProcess_OutputTemplate(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Render.OutputNameTemplate = `{{ .Slug }}/{{ .SourceFile | upper }}`

	src := filepath.Join(t.TempDir(), "note.md")
	dstDir := t.TempDir()
	writeSource(t, src, "# My Note\n")

	if err := process(ctx, src, dstDir, testLogger(t)); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	readOutput(t, filepath.Join(dstDir, "my-note", "NOTE.html"))
}

type generationCall struct {
	Kind   string `json:"type"`
	Bot    string `json:"bot"`
	Prompt string `json:"prompt"`
}

type generationCalls struct {
	mu    sync.Mutex
	calls []generationCall
}

func (g *generationCalls) list() []generationCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generationCall(nil), g.calls...)
}

func generationServer(t *testing.T, calls *generationCalls) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var c generationCall
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		calls.mu.Lock()
		calls.calls = append(calls.calls, c)
		calls.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch c.Kind {
		case "text":
			_ = json.NewEncoder(w).Encode(map[string]string{"content": "**" + c.Prompt + "** from " + c.Bot})
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example.com/" + c.Kind})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestProcess_Generation tests generation directives rendered through
// configured service
func TestProcess_Generation(t *testing.T) {
	ctx, env := setupTestEnv(t)
	calls := new(generationCalls)
	srv := generationServer(t, calls)
	env.Cfg.Render.Workers = 1
	env.Cfg.Generation.Backend = config.GenerationBackendHttp
	env.Cfg.Generation.Endpoint = srv.URL

	src := filepath.Join(t.TempDir(), "gen.md")
	dstDir := t.TempDir()
	writeSource(t, src, "~ai[poet](\"haiku\")\n~🤖🖼️ [painter](\"cat\")\n")

	if err := process(ctx, src, dstDir, testLogger(t)); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readOutput(t, filepath.Join(dstDir, "gen.html"))
	want := "<strong>haiku</strong> from poet\n" + `<img src="https://cdn.example.com/image" alt="cat">`
	if got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if got := calls.list(); len(got) != 2 || got[0].Kind != "text" || got[1].Kind != "image" {
		t.Errorf("unexpected service calls: %+v", got)
	}
}

// TestProcess_Offline tests that offline mode never contacts service
func TestProcess_Offline(t *testing.T) {
	ctx, env := setupTestEnv(t)
	calls := new(generationCalls)
	srv := generationServer(t, calls)
	env.Cfg.Generation.Backend = config.GenerationBackendHttp
	env.Cfg.Generation.Endpoint = srv.URL
	env.Offline = true

	src := filepath.Join(t.TempDir(), "gen.md")
	dstDir := t.TempDir()
	writeSource(t, src, "~ai[poet](\"haiku\")\n")

	if err := process(ctx, src, dstDir, testLogger(t)); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readOutput(t, filepath.Join(dstDir, "gen.html"))
	if want := `<div class="ai-error">Error generating text: content generation is disabled</div>`; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if got := calls.list(); len(got) != 0 {
		t.Errorf("service called in offline mode: %+v", got)
	}
}

// TestProcess_Includes tests hydration of external includes
func TestProcess_Includes(t *testing.T) {
	ctx, env := setupTestEnv(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/a.md", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("## Included"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	env.Cfg.Render.IncludeDepth = 1

	src := filepath.Join(t.TempDir(), "inc.md")
	dstDir := t.TempDir()
	writeSource(t, src, `~mkd(url="`+srv.URL+`/a.md")`+"\n"+`~mkd(url="`+srv.URL+`/missing.md")`)

	if err := process(ctx, src, dstDir, testLogger(t)); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readOutput(t, filepath.Join(dstDir, "inc.html"))
	if want := `<div class="external-markdown" data-url="` + srv.URL + `/a.md"><h2>Included</h2></div>`; !strings.Contains(got, want) {
		t.Errorf("output does not contain %q:\n%s", want, got)
	}
	if !strings.Contains(got, `<div class="external-markdown-error">Failed to load external content from: `+srv.URL+`/missing.md`) {
		t.Errorf("output does not contain include error:\n%s", got)
	}
}

// TestProcess_IncludesDisabled tests that placeholders are kept by default
func TestProcess_IncludesDisabled(t *testing.T) {
	ctx, _ := setupTestEnv(t)

	src := filepath.Join(t.TempDir(), "inc.md")
	dstDir := t.TempDir()
	writeSource(t, src, `~mkd(url="https://example.com/a.md")`)

	if err := process(ctx, src, dstDir, testLogger(t)); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readOutput(t, filepath.Join(dstDir, "inc.html"))
	if !strings.Contains(got, "Loading external content from: https://example.com/a.md") {
		t.Errorf("placeholder missing:\n%s", got)
	}
}

// TestProcess_Save tests saving rendered documents to library
func TestProcess_Save(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Save, env.Owner = true, "0xOwner"
	env.Cfg.Library.Path = filepath.Join(t.TempDir(), "library.db")

	src := filepath.Join(t.TempDir(), "saved.md")
	writeSource(t, src, sampleSource)

	if err := process(ctx, src, t.TempDir(), testLogger(t)); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	lib, err := library.Open(env.Cfg.Library.Path, testLogger(t))
	if err != nil {
		t.Fatalf("open library: %v", err)
	}
	defer lib.Close()

	docs, err := lib.ListByOwner(context.Background(), "0xOwner")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(docs))
	}
	if docs[0].Title != "Sample" || docs[0].Content != sampleSource || !strings.Contains(docs[0].HTML, "<h1>Sample</h1>") {
		t.Errorf("unexpected document: %+v", docs[0])
	}
}

// TestProcessDocument_Stdout tests rendering of standard input to standard
// output
func TestProcessDocument_Stdout(t *testing.T) {
	ctx, _ := setupTestEnv(t)

	p, err := newPipeline(ctx, testLogger(t))
	if err != nil {
		t.Fatalf("newPipeline() error = %v", err)
	}
	out := new(bytes.Buffer)
	p.stdout = out

	if err := p.processDocument(ctx, strings.NewReader("**hi**"), stdinName, ""); err != nil {
		t.Fatalf("processDocument() error = %v", err)
	}
	if err := p.finish(); err != nil {
		t.Fatalf("finish() error = %v", err)
	}
	if out.String() != "<strong>hi</strong>" {
		t.Errorf("stdout = %q", out.String())
	}
}

// TestProcessDocument_ForcedCodePage tests legacy encoded sources
func TestProcessDocument_ForcedCodePage(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.CodePage = charmap.Windows1251

	p, err := newPipeline(ctx, testLogger(t))
	if err != nil {
		t.Fatalf("newPipeline() error = %v", err)
	}
	out := new(bytes.Buffer)
	p.stdout = out

	data, err := env.CodePage.NewEncoder().Bytes([]byte("# Привет"))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.processDocument(ctx, bytes.NewReader(data), stdinName, ""); err != nil {
		t.Fatalf("processDocument() error = %v", err)
	}
	if out.String() != "<h1>Привет</h1>" {
		t.Errorf("stdout = %q", out.String())
	}
}
