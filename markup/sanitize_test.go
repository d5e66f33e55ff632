package markup

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"mkd/generate"
)

func TestSanitizerFormatsGeneratedTextFirst(t *testing.T) {
	gen := generate.Func(func(ctx context.Context, req generate.Request) (generate.Result, error) {
		return generate.Result{Text: "> [card]\n  see [a](http://x/?a=1&b=2) <script>alert(1)</script>done"}, nil
	})
	r := New(WithGenerator(gen), WithSanitizer(true), WithLogger(zaptest.NewLogger(t)))

	got := render(t, r, `~ai[poet]("write")`).HTML
	for _, want := range []string{
		`<div class="card">`,
		`<a href="http://x/?a=1&amp;b=2">a</a>`,
		"done",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("sanitized output does not contain %q:\n%s", want, got)
		}
	}
	for _, bad := range []string{"<script", "alert(1)", "&amp;amp;", "&gt; [card]"} {
		if strings.Contains(got, bad) {
			t.Errorf("sanitized output contains %q:\n%s", bad, got)
		}
	}
}

func TestSanitizerKeepsRenderedMarkup(t *testing.T) {
	src := "# Title\n" +
		"@arg[who]:string (the person)\n" +
		"@ai[helper](q, tool:[search]) **Description:** Helps\n\n" +
		"> [card]\n" +
		"  Hi {who}, **bold** and ~~gone~~\n" +
		"  - one\n" +
		"  - two\n" +
		"@ai[helper](x)\n" +
		"`a<b`\n" +
		`~mkd(url="https://e.com/a.md")`

	plain := render(t, New(), src).HTML
	sanitized := render(t, New(WithSanitizer(true)), src).HTML
	if diff := cmp.Diff(plain, sanitized); diff != "" {
		t.Errorf("sanitizer changed rendered markup (-plain +sanitized):\n%s", diff)
	}

	disabled := render(t, New(WithSanitizer(true), WithSanitizer(false)), "<b onclick=\"x()\">b</b>").HTML
	if disabled != "<b onclick=\"x()\">b</b>" {
		t.Errorf("disabled sanitizer changed output: %q", disabled)
	}
	if got := render(t, New(WithSanitizer(true)), "<b onclick=\"x()\">b</b>").HTML; got != "<b>b</b>" {
		t.Errorf("event handler survived sanitizer: %q", got)
	}
}
