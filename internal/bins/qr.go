package bins

import (
	"net/url"
	"strings"

	qr "github.com/skip2/go-qrcode"
)

const defaultQRSize = 512

// QRGenerator renders PNG QR codes that point at the scan page.
type QRGenerator struct {
	baseURL string
	size    int
}

func NewQRGenerator(baseURL string, size int) *QRGenerator {
	if size <= 0 {
		size = defaultQRSize
	}
	return &QRGenerator{baseURL: strings.TrimRight(baseURL, "/"), size: size}
}

// BinURL is the content encoded in a bin's QR code.
func (g *QRGenerator) BinURL(binID string) string {
	return g.baseURL + "/scan?bin=" + url.QueryEscape(binID)
}

// UserURL is the content encoded in a user's personal QR code.
func (g *QRGenerator) UserURL(userID string) string {
	return g.baseURL + "/scan?user=" + url.QueryEscape(userID)
}

// BinQR renders the bin's QR code.
func (g *QRGenerator) BinQR(binID string) ([]byte, error) {
	return qr.Encode(g.BinURL(binID), qr.Medium, g.size)
}

// UserQR renders the personal QR code at high error correction.
func (g *QRGenerator) UserQR(userID string) ([]byte, error) {
	return qr.Encode(g.UserURL(userID), qr.High, g.size)
}
