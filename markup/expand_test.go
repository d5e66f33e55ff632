package markup

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"mkd/generate"
)

func TestExpandErrorIsolation(t *testing.T) {
	gen := generate.Func(func(ctx context.Context, req generate.Request) (generate.Result, error) {
		switch req.Kind {
		case generate.Text:
			return generate.Result{}, errors.New("API quota exceeded")
		case generate.Image:
			return generate.Result{URL: "https://img.example.com/cat.png"}, nil
		}
		return generate.Result{}, generate.Unsupported(req.Kind)
	})

	r := New(WithGenerator(gen), WithLogger(zaptest.NewLogger(t)))
	res := render(t, r, "~ai[poet](\"haiku\")\n~ai-img[painter](\"a cat\")")

	want := "<div class=\"ai-error\">Error generating text: API quota exceeded</div>\n" +
		"<img src=\"https://img.example.com/cat.png\" alt=\"a cat\">"
	if diff := cmp.Diff(want, res.HTML); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
	if len(res.Generated) != 2 {
		t.Fatalf("Generated = %d outcomes, want 2", len(res.Generated))
	}
	if res.Generated[0].Err == nil || res.Generated[1].Err != nil {
		t.Errorf("unexpected outcomes: %+v", res.Generated)
	}
	if res.Generated[1].Bot != "painter" || res.Generated[1].Prompt != "a cat" {
		t.Errorf("outcome does not describe directive: %+v", res.Generated[1])
	}
}

func TestExpandVideoNeverCallsGenerator(t *testing.T) {
	var calls atomic.Int32
	gen := generate.Func(func(ctx context.Context, req generate.Request) (generate.Result, error) {
		calls.Add(1)
		return generate.Result{URL: "https://video.example.com/film.mp4"}, nil
	})

	r := New(WithGenerator(gen))
	for _, src := range []string{`~ai-video[director]("film")`, `~🤖🎬 [director]("film")`} {
		got := render(t, r, src).HTML
		want := `<div class="ai-error">Error generating video: video generation is not supported</div>`
		if got != want {
			t.Errorf("Render(%q) = %q, want %q", src, got, want)
		}
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("generator called %d times for video", n)
	}
}

func TestExpandTextIsFormatted(t *testing.T) {
	gen := generate.Func(func(ctx context.Context, req generate.Request) (generate.Result, error) {
		return generate.Result{Text: "**Roses** are red\r\n- violets"}, nil
	})
	got := render(t, New(WithGenerator(gen)), `~🤖 [poet]("poem")`).HTML
	want := "<strong>Roses</strong> are red\n<ul>\n<li>violets</li>\n</ul>"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandRequests(t *testing.T) {
	var reqs []generate.Request
	gen := generate.Func(func(ctx context.Context, req generate.Request) (generate.Result, error) {
		reqs = append(reqs, req)
		return generate.Result{URL: "data:audio/mpeg;base64,AAAA"}, nil
	})
	res := render(t, New(WithGenerator(gen)), "first ~ai-voice[narrator](\"read\") then ~🤖🔈 [narrator](\"again\")")

	if len(reqs) != 2 {
		t.Fatalf("got %d requests, want 2", len(reqs))
	}
	for i, prompt := range []string{"read", "again"} {
		if reqs[i].Kind != generate.Voice || reqs[i].Bot != "narrator" || reqs[i].Prompt != prompt || reqs[i].ID == "" {
			t.Errorf("request %d = %+v", i, reqs[i])
		}
	}
	if reqs[0].ID == reqs[1].ID {
		t.Errorf("correlation ids are not unique")
	}
	audio := `<audio controls><source src="data:audio/mpeg;base64,AAAA" type="audio/mpeg">Your browser does not support the audio element.</audio>`
	if want := "first " + audio + " then " + audio; res.HTML != want {
		t.Errorf("Render() = %q, want %q", res.HTML, want)
	}
}

func TestExpandObserver(t *testing.T) {
	gen := generate.Func(func(ctx context.Context, req generate.Request) (generate.Result, error) {
		return generate.Result{Text: "answer " + req.Prompt}, nil
	})
	var snapshots []string
	r := New(WithGenerator(gen), WithObserver(func(s string) { snapshots = append(snapshots, s) }))
	res := render(t, r, "`~ai[bot](\"code\")` ~ai[bot](\"one\") ~ai[bot](\"two\")")

	if len(snapshots) != 3 {
		t.Fatalf("observer called %d times, want 3", len(snapshots))
	}
	if n := strings.Count(snapshots[0], `class="ai-loading"`); n != 2 {
		t.Errorf("first snapshot has %d loading markers, want 2: %s", n, snapshots[0])
	}
	if !strings.Contains(snapshots[0], "bot is thinking...") {
		t.Errorf("loading marker does not name bot: %s", snapshots[0])
	}
	if !strings.Contains(snapshots[1], "answer one") || !strings.Contains(snapshots[1], `class="ai-loading"`) {
		t.Errorf("second snapshot = %s", snapshots[1])
	}
	if strings.Contains(res.HTML, "ai-loading") {
		t.Errorf("final output has loading marker: %s", res.HTML)
	}
	if want := "<code>~ai[bot](&#34;code&#34;)</code> answer one answer two"; res.HTML != want {
		t.Errorf("Render() = %q, want %q", res.HTML, want)
	}
}

func TestExpandDisabled(t *testing.T) {
	got := render(t, New(), `~ai[poet]("haiku")`).HTML
	if want := `<div class="ai-error">Error generating text: content generation is disabled</div>`; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestExpandTimeout(t *testing.T) {
	gen := generate.Func(func(ctx context.Context, req generate.Request) (generate.Result, error) {
		<-ctx.Done()
		return generate.Result{}, ctx.Err()
	})
	got := render(t, New(WithGenerator(gen), WithTimeout(10*time.Millisecond)), `~ai[slow]("x")`).HTML
	if want := `<div class="ai-error">Error generating text: generation timed out</div>`; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestExpandMissingURL(t *testing.T) {
	gen := generate.Func(func(ctx context.Context, req generate.Request) (generate.Result, error) {
		return generate.Result{}, nil
	})
	got := render(t, New(WithGenerator(gen)), `~ai-img[p]("x")`).HTML
	if want := `<div class="ai-error">Error generating image: no image URL returned</div>`; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestExpandEscapesErrors(t *testing.T) {
	gen := generate.Func(func(ctx context.Context, req generate.Request) (generate.Result, error) {
		return generate.Result{}, errors.New("<script>")
	})
	got := render(t, New(WithGenerator(gen)), `~ai[p]("x")`).HTML
	if want := `<div class="ai-error">Error generating text: &lt;script&gt;</div>`; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestExpandCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := generate.Func(func(ctx context.Context, req generate.Request) (generate.Result, error) {
		cancel()
		return generate.Result{Text: "late"}, nil
	})
	res, err := New(WithGenerator(gen)).Render(ctx, `~ai[p]("x") ~ai[p]("y")`)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Render() error = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Errorf("Render() returned result for cancelled render")
	}
}
