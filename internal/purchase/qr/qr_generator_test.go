package qr_test

import (
	"bytes"
	"testing"

	"template-store/internal/purchase/qr"

	"github.com/stretchr/testify/assert"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47}

func TestDownloadLinkPNG(t *testing.T) {
	gen := qr.NewGenerator("https://store.example.com")

	png, err := gen.DownloadLinkPNG("abcdef0123456789", 256)
	assert.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic), "expected PNG output")
}

func TestDownloadLinkPNG_DifferentTokensDiffer(t *testing.T) {
	gen := qr.NewGenerator("https://store.example.com")

	a, err := gen.DownloadLinkPNG("token-a", 256)
	assert.NoError(t, err)
	b, err := gen.DownloadLinkPNG("token-b", 256)
	assert.NoError(t, err)

	assert.NotEqual(t, a, b)
}
