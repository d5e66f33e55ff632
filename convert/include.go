package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"mkd/markup"
)

// maxIncludeSize limits how much of external document is read.
const maxIncludeSize = 4 << 20

var errIncludeScheme = errors.New("only http and https includes are supported")

func includeError(u string, err error) string {
	return `<div class="external-markdown-error">Failed to load external content from: ` +
		html.EscapeString(u) + ` (` + html.EscapeString(err.Error()) + `)</div>`
}

// fetch downloads external markdown document.
func (p *pipeline) fetch(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errIncludeScheme
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/markdown, text/plain;q=0.9, */*;q=0.1")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIncludeSize))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// hydrate fills include placeholders with rendered external documents,
// going at most depth levels deep. Documents included more than once are
// fetched once per level. Failures replace placeholder with error note and
// never fail the including document.
func (p *pipeline) hydrate(ctx context.Context, doc string, depth int) string {
	if depth <= 0 || p.client == nil {
		return doc
	}
	for _, u := range markup.Includes(doc) {
		if ctx.Err() != nil {
			return doc
		}
		start := time.Now()
		content, err := p.fetch(ctx, u)
		if err == nil {
			var res *markup.Result
			if res, err = p.renderer.Render(ctx, content); err == nil {
				content = p.hydrate(ctx, res.HTML, depth-1)
			}
		}
		if err != nil {
			p.log.Warn("Unable to include external document", zap.String("url", u), zap.Error(err))
			doc = markup.Hydrate(doc, u, includeError(u, err))
			continue
		}
		p.log.Debug("External document included", zap.String("url", u), zap.Int("depth", depth), zap.Duration("elapsed", time.Since(start)))
		doc = markup.Hydrate(doc, u, content)
	}
	return doc
}
