package s3store

import (
	"mime"
	"path"
)

// contentType guesses a MIME type from the object key's extension so
// downloads through the web console render sensibly. Unknown extensions
// leave the type unset and the SDK default applies.
func contentType(key string) string {
	ext := path.Ext(key)
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}
