package markup

import "github.com/microcosm-cc/bluemonday"

// sanitizePolicy keeps markup the renderer itself produces: classes, data
// attributes, media with data URLs. Scripts, event handlers and other
// unsafe markup written by hand or returned by generation are dropped.
func sanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(false)
	p.AllowAttrs("class").Globally()
	p.AllowDataAttributes()
	p.AllowDataURIImages()
	p.AllowURLSchemes("data")
	p.AllowElements("audio", "source")
	p.AllowAttrs("controls").OnElements("audio")
	p.AllowAttrs("src", "type").OnElements("source")
	return p
}

// WithSanitizer runs rendered fragment through HTML sanitizer. Generated
// text is formatted first, so it is the resulting markup which gets
// checked, not its source.
func WithSanitizer(enabled bool) Option {
	return func(r *Renderer) {
		r.policy = nil
		if enabled {
			r.policy = sanitizePolicy()
		}
	}
}
