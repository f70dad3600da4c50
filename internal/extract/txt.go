package extract

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// plainText decodes UTF-8, falling back to Windows-1252 when the bytes use
// its printable 0x80-0x9F range and to ISO-8859-1 otherwise. Both legacy
// decoders accept any byte sequence.
func plainText(content []byte) string {
	content = bytes.TrimPrefix(content, utf8BOM)
	if utf8.Valid(content) {
		return string(content)
	}

	decoder := charmap.ISO8859_1.NewDecoder()
	if hasC1Bytes(content) {
		decoder = charmap.Windows1252.NewDecoder()
	}
	decoded, err := decoder.Bytes(content)
	if err != nil {
		return string(bytes.ToValidUTF8(content, []byte("�")))
	}
	return string(decoded)
}

func hasC1Bytes(content []byte) bool {
	for _, b := range content {
		if b >= 0x80 && b <= 0x9F {
			return true
		}
	}
	return false
}
