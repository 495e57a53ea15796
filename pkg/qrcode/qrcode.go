package qrcode

import (
	qrcode "github.com/skip2/go-qrcode"
)

// GeneratePNG renders content as a QR code PNG of the given pixel size
func GeneratePNG(content string, size int) ([]byte, error) {
	pngBytes, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	return pngBytes, nil
}
