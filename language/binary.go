package language

import (
	"bytes"
	"path/filepath"
	"strings"
)

// sniffSize is how many leading bytes IsBinaryContent inspects.
const sniffSize = 512

// binaryExtensions lists extensions of files that are never served as text:
// images, fonts, documents, archives, compiled artifacts, media and databases.
// Keys are lower-case and include the leading dot.
var binaryExtensions = map[string]struct{}{
	// Images
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".ico": {}, ".svg": {},
	".webp": {}, ".bmp": {}, ".tiff": {}, ".psd": {}, ".ai": {},

	// Fonts
	".ttf": {}, ".otf": {}, ".woff": {}, ".woff2": {}, ".eot": {},

	// Documents and archives
	".pdf": {}, ".zip": {}, ".tar": {}, ".gz": {}, ".7z": {}, ".rar": {},
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},

	// Compiled / packaged
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {}, ".obj": {},
	".o": {}, ".a": {}, ".lib": {}, ".pyc": {}, ".pyd": {}, ".class": {},
	".jar": {}, ".war": {}, ".ear": {},

	// Mobile build outputs
	".apk": {}, ".aab": {}, ".ipa": {}, ".ap_": {}, ".dex": {}, ".nib": {},
	".plist": {},

	// Media
	".mp4": {}, ".mp3": {}, ".wav": {}, ".ogg": {}, ".mov": {}, ".avi": {},
	".webm": {}, ".m4a": {},

	// Databases and data dumps
	".db": {}, ".sqlite": {}, ".sqlite3": {}, ".parquet": {},

	// Misc noise
	".ds_store": {}, ".lock": {}, ".pem": {}, ".log": {}, ".map": {},
}

// binaryNames are exact base names that are denied regardless of extension.
var binaryNames = map[string]struct{}{
	"thumbs.db": {},
	".ds_store": {},
}

// IsBinaryExtension reports whether the file name carries an extension (or is
// an exact name) from the binary/media/archive denylist. Matching is
// case-insensitive.
func IsBinaryExtension(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	if _, ok := binaryNames[base]; ok {
		return true
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" {
		return false
	}
	_, ok := binaryExtensions[ext]
	return ok
}

// IsBinaryContent reports whether data looks binary: a NUL byte within the
// first 512 bytes.
func IsBinaryContent(data []byte) bool {
	if len(data) > sniffSize {
		data = data[:sniffSize]
	}
	return bytes.IndexByte(data, 0) >= 0
}
