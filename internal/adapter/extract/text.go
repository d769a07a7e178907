package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"docsearch/internal/domain"
)

var textExtensions = map[string]struct{}{
	".txt":      {},
	".text":     {},
	".md":       {},
	".markdown": {},
	".log":      {},
}

// Supported reports whether filename has a plain-text extension.
func Supported(filename string) bool {
	_, ok := textExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Text decodes the contents of a plain-text upload. UTF-16 is detected by
// its byte order mark; input that is not valid UTF-8 is read as
// Windows-1252, which accepts any byte sequence.
func Text(filename string, data []byte) (string, error) {
	if !Supported(filename) {
		return "", fmt.Errorf("%s: %w", filepath.Ext(filename), domain.ErrUnsupportedFormat)
	}
	return Decode(data)
}

// Decode converts raw bytes to a UTF-8 string.
func Decode(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return Decode(data[3:])
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), data)
	case utf8.Valid(data):
		return string(data), nil
	default:
		return decodeWith(charmap.Windows1252, data)
	}
}

func decodeWith(enc encoding.Encoding, data []byte) (string, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}
	return string(out), nil
}
