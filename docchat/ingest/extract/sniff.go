package extract

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// genericTypes are declared types browsers and clients send when they do not know better.
var genericTypes = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
	"application/zip":          true, // xlsx uploaded without a proper type
}

// DeclaredType picks the most specific type hint available for an upload: the declared
// type when it is meaningful, then the file name, then the content itself.
func DeclaredType(declared, name string, raw []byte) string {
	if !isGeneric(declared) {
		if _, ok := Normalize(declared); ok {
			return declared
		}
	}
	if _, ok := Normalize(name); ok && name != "" {
		return name
	}
	if !isGeneric(declared) {
		return declared
	}
	if len(raw) == 0 {
		return declared
	}
	return mimetype.Detect(raw).String()
}

func isGeneric(declared string) bool {
	d := strings.ToLower(strings.TrimSpace(declared))
	if mt, _, err := mime.ParseMediaType(d); err == nil {
		d = mt
	}
	return genericTypes[d]
}
