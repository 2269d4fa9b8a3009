package plaintext

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var ErrBinary = errors.New("content is not valid utf-8 text")

// Text returns the trimmed content of a text file. A UTF-8 byte order mark is
// dropped; anything that is not valid UTF-8 is rejected.
func Text(raw []byte) (string, error) {
	raw = trimBOM(raw)
	if !utf8.Valid(raw) {
		return "", ErrBinary
	}
	return strings.TrimSpace(string(raw)), nil
}

func trimBOM(raw []byte) []byte {
	if len(raw) >= 3 && raw[0] == 0xEF && raw[1] == 0xBB && raw[2] == 0xBF {
		return raw[3:]
	}
	return raw
}
