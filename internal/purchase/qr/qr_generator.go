package qr

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// Generator renders download links as QR codes so a buyer can reclaim a
// purchase on another device without retyping the token.
type Generator struct {
	baseURL string
}

func NewGenerator(baseURL string) *Generator {
	return &Generator{baseURL: baseURL}
}

// DownloadLinkPNG encodes the download URL for a token as a QR PNG.
func (g *Generator) DownloadLinkPNG(token string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	url := fmt.Sprintf("%s/downloads/%s", g.baseURL, token)
	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, nil
}
