package convert

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

type srcEncoding int

const (
	encUnknown srcEncoding = iota
	encUTF8
	encUTF16BigEndian
	encUTF16LittleEndian
	encUTF32BigEndian
	encUTF32LittleEndian
)

func (e srcEncoding) String() string {
	switch e {
	case encUTF8:
		return "utf8"
	case encUTF16BigEndian:
		return "utf16be"
	case encUTF16LittleEndian:
		return "utf16le"
	case encUTF32BigEndian:
		return "utf32be"
	case encUTF32LittleEndian:
		return "utf32le"
	default:
		return "unknown"
	}
}

// headerSize is how much of the file is looked at to decide whether it is
// markdown source or something else.
const headerSize = 512

func isUTF8BOM3(buf []byte) bool {
	return len(buf) >= 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF
}

func isUTF16BigEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFE && buf[1] == 0xFF
}

func isUTF16LittleEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFF && buf[1] == 0xFE
}

func isUTF32BigEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0x00 && buf[1] == 0x00 && buf[2] == 0xFE && buf[3] == 0xFF
}

func isUTF32LittleEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0xFF && buf[1] == 0xFE && buf[2] == 0x00 && buf[3] == 0x00
}

// detectUTF looks for byte order mark. UTF-32LE mark starts with UTF-16LE
// one, so longer marks are checked first.
func detectUTF(buf []byte) srcEncoding {
	switch {
	case isUTF32BigEndianBOM4(buf):
		return encUTF32BigEndian
	case isUTF32LittleEndianBOM4(buf):
		return encUTF32LittleEndian
	case isUTF8BOM3(buf):
		return encUTF8
	case isUTF16BigEndianBOM2(buf):
		return encUTF16BigEndian
	case isUTF16LittleEndianBOM2(buf):
		return encUTF16LittleEndian
	}
	return encUnknown
}

func readHeader(r io.Reader) ([]byte, error) {
	buf := make([]byte, headerSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

func isArchiveFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header, err := readHeader(f)
	if err != nil {
		return false, err
	}
	kind, err := filetype.Match(header)
	if err != nil {
		return false, nil
	}
	return kind == matchers.TypeZip, nil
}

func hasSourceExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return len(ext) > 0 && slices.ContainsFunc(exts, func(e string) bool { return strings.EqualFold(e, ext) })
}

// looksLikeText accepts anything with byte order mark and otherwise
// anything which is not recognized binary format and has no NUL bytes.
// Sources without BOM are not required to be valid UTF-8, legacy code pages
// are handled later.
func looksLikeText(header []byte) (bool, srcEncoding) {
	if enc := detectUTF(header); enc != encUnknown {
		return true, enc
	}
	if len(header) == 0 {
		return true, encUnknown
	}
	if filetype.IsImage(header) || filetype.IsArchive(header) || filetype.IsAudio(header) ||
		filetype.IsVideo(header) || filetype.IsDocument(header) || filetype.IsFont(header) {
		return false, encUnknown
	}
	if bytes.IndexByte(header, 0) >= 0 {
		return false, encUnknown
	}
	return true, encUnknown
}

func isSourceFile(path string, exts []string) (bool, srcEncoding, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, encUnknown, err
	}
	defer f.Close()

	if !hasSourceExt(path, exts) {
		return false, encUnknown, nil
	}
	header, err := readHeader(f)
	if err != nil {
		return false, encUnknown, err
	}
	ok, enc := looksLikeText(header)
	return ok, enc, nil
}

func isSourceInArchive(f *zip.File, exts []string) (bool, srcEncoding, error) {
	if !hasSourceExt(f.FileHeader.Name, exts) {
		return false, encUnknown, nil
	}
	r, err := f.Open()
	if err != nil {
		return false, encUnknown, err
	}
	defer r.Close()

	header, err := readHeader(r)
	if err != nil {
		return false, encUnknown, err
	}
	ok, enc := looksLikeText(header)
	return ok, enc, nil
}

// selectReader returns reader producing UTF-8 without byte order mark.
func selectReader(r io.Reader, enc srcEncoding) io.Reader {
	var e encoding.Encoding
	switch enc {
	case encUnknown:
		return r
	case encUTF8:
		e = unicode.UTF8BOM
	case encUTF16BigEndian:
		e = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	case encUTF16LittleEndian:
		e = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case encUTF32BigEndian:
		e = utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM)
	case encUTF32LittleEndian:
		e = utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM)
	default:
		panic("unexpected source encoding")
	}
	return e.NewDecoder().Reader(r)
}

// decodeLegacy converts source which is not valid UTF-8 using forced code
// page, if any.
func decodeLegacy(data []byte, cp encoding.Encoding) ([]byte, bool) {
	if cp == nil || utf8.Valid(data) {
		return data, false
	}
	out, err := cp.NewDecoder().Bytes(data)
	if err != nil {
		return data, false
	}
	return out, true
}
