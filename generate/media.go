package generate

import (
	"encoding/base64"

	"github.com/h2non/filetype"
)

// maxResponseSize limits what is read from generation service, enough for
// a few minutes of speech or a large image.
const maxResponseSize = 32 << 20

// DataURL embeds generated media into document. Content type is detected
// from the data itself, fallback is used when detection fails.
func DataURL(data []byte, fallback string) string {
	mime := fallback
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		mime = kind.MIME.Value
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
