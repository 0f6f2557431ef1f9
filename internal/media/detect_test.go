package media_test

import (
	"testing"

	"github.com/idelchi/recrypt/internal/media"
)

func TestSniff(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		data []byte
		want string
	}{
		"jpeg":      {[]byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10}, "image/jpeg"},
		"png":       {[]byte("\x89PNG\r\n\x1a\n...."), "image/png"},
		"webp":      {[]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
		"mp4":       {[]byte("\x00\x00\x00\x18ftypisom"), "video/mp4"},
		"quicktime": {[]byte("\x00\x00\x00\x14ftypqt  "), "video/quicktime"},
		"mkv":       {[]byte{0x1a, 0x45, 0xdf, 0xa3, 0x01}, "video/x-matroska"},
		"text":      {[]byte("hello world"), ""},
		"empty":     {nil, ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if got := media.Sniff(tc.data); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	t.Parallel()

	if got := media.ContentType("Photo.JPG", "application/octet-stream"); got != "image/jpeg" {
		t.Fatalf("got %q", got)
	}

	if got := media.ContentType("archive.tar", "application/octet-stream"); got != "application/octet-stream" {
		t.Fatalf("got %q", got)
	}

	if got := media.ContentType("", "x"); got != "x" {
		t.Fatalf("got %q", got)
	}
}
