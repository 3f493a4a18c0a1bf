package claims

import (
	"fmt"
	"net/url"

	"github.com/skip2/go-qrcode"
)

const DefaultQrSize = 256

// ClaimUrl is the link printed on claim sheets, it pre-fills the code
// on the public claim page of the organisation
func ClaimUrl(baseUrl, orgSlug, code string) string {
	query := url.Values{}
	query.Set("org", orgSlug)
	query.Set("code", code)
	return fmt.Sprintf("%s/claim?%s", baseUrl, query.Encode())
}

// QRCode renders content as a PNG
func QRCode(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQrSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}
