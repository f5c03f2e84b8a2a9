package source

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// lookupCharmap returns the codec for a policy encoding name, or nil for UTF-8
func lookupCharmap(name string) (*charmap.Charmap, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "cp1252", "windows-1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// Decode converts raw file bytes in the named encoding to UTF-8 text.
// UTF-8 input must be valid; a leading byte order mark is dropped.
func Decode(raw []byte, enc string) (string, error) {
	cm, err := lookupCharmap(enc)
	if err != nil {
		return "", err
	}
	if cm == nil {
		raw = bytes.TrimPrefix(raw, utf8BOM)
		if !utf8.Valid(raw) {
			return "", ErrNotText
		}
		return string(raw), nil
	}
	out, err := cm.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", enc, err)
	}
	return string(out), nil
}

// Encode converts UTF-8 text back to the named encoding. Characters the
// encoding cannot represent are replaced; they can only come from
// generated comments, never from original code.
func Encode(text, enc string, bom bool) ([]byte, error) {
	cm, err := lookupCharmap(enc)
	if err != nil {
		return nil, err
	}
	if cm == nil {
		if bom {
			return append(append([]byte{}, utf8BOM...), text...), nil
		}
		return []byte(text), nil
	}
	out, err := encoding.ReplaceUnsupported(cm.NewEncoder()).Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", enc, err)
	}
	return out, nil
}
