package catalog

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultEncoding is what the ESA and IRSA archives send result tables in.
const DefaultEncoding = "ISO-8859-1"

// LookupEncoding resolves a character set name. An empty name or UTF-8
// returns nil, meaning no transcoding is needed.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}

func decodeText(body []byte, name string) (string, error) {
	enc, err := LookupEncoding(name)
	if err != nil {
		return "", err
	}
	if enc == nil {
		if !utf8.Valid(body) {
			return "", fmt.Errorf("payload is not valid UTF-8")
		}
		return string(body), nil
	}

	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
