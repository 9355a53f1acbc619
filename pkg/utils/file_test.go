package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"cat.png", "cat.png"},
		{"My Photo (1).jpg", "My_Photo__1_.jpg"},
		{"../../etc/passwd", "passwd"},
		{"..\\..\\windows\\system.ini", "system.ini"},
		{"/absolute/path/img.jpeg", "img.jpeg"},
		{"...", ""},
		{"", ""},
		{"___", ""},
		{"ünïcödé.png", "n_c_d_.png"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeFilename(tc.in), "input %q", tc.in)
	}
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeFor("jpg"))
	assert.Equal(t, "image/jpeg", ContentTypeFor(".JPEG"))
	assert.Equal(t, "image/png", ContentTypeFor("png"))
	assert.Equal(t, "image/bmp", ContentTypeFor("bmp"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("bin"))
}
