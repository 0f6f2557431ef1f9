package media

import (
	"bytes"
	"path/filepath"
	"strings"
)

//nolint:gochecknoglobals
var signatures = []struct {
	offset int
	magic  []byte
	kind   string
}{
	{0, []byte{0xff, 0xd8, 0xff}, "image/jpeg"},
	{0, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, "image/png"},
	{0, []byte("GIF8"), "image/gif"},
	{8, []byte("WEBP"), "image/webp"},
	{0, []byte("BM"), "image/bmp"},
	{4, []byte("ftypqt"), "video/quicktime"},
	{4, []byte("ftyp"), "video/mp4"},
	{0, []byte{0x1a, 0x45, 0xdf, 0xa3}, "video/x-matroska"},
	{8, []byte("AVI "), "video/x-msvideo"},
}

// Sniff guesses the content type from leading magic bytes. It returns an empty string when unsure.
func Sniff(data []byte) string {
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(data) >= end && bytes.Equal(data[sig.offset:end], sig.magic) {
			return sig.kind
		}
	}

	return ""
}

//nolint:gochecknoglobals
var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
}

// ContentType maps a filename extension to a content type, or fallback when unknown.
func ContentType(filename, fallback string) string {
	if kind, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return kind
	}

	return fallback
}
