package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Verify checks that rawBody was signed with secret and decodes it.
//
// rawBody must be the bytes exactly as received. Presence of the three
// headers and a non-empty body is checked before any hashing. The digest is
// standard base64 of HMAC-SHA256 and is compared byte for byte in constant
// time. The body is only decoded once the digest matches.
func Verify(rawBody []byte, h Headers, secret []byte) (Payload, error) {
	if !h.complete() || len(rawBody) == 0 {
		return nil, ErrMissingHeaders
	}
	if len(secret) == 0 {
		return nil, ErrUnauthorized
	}

	expected := computeSignature(rawBody, secret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(h.HMAC)) != 1 {
		return nil, ErrUnauthorized
	}

	var p Payload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedPayload)
	}
	return p, nil
}

// Verifier binds Verify to a configured secret and optional shop pin.
type Verifier struct {
	secret     []byte
	shopDomain string
}

// NewVerifier creates a Verifier. An empty shopDomain accepts any shop.
func NewVerifier(secret, shopDomain string) *Verifier {
	return &Verifier{secret: []byte(secret), shopDomain: shopDomain}
}

// Verify checks headers, the shop pin and then the digest.
func (v *Verifier) Verify(rawBody []byte, h Headers) (Payload, error) {
	if !h.complete() || len(rawBody) == 0 {
		return nil, ErrMissingHeaders
	}
	if v.shopDomain != "" && h.ShopDomain != v.shopDomain {
		return nil, ErrUnauthorized
	}
	return Verify(rawBody, h, v.secret)
}

// computeSignature returns base64(HMAC-SHA256(secret, body)).
func computeSignature(body, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Sign returns the digest a sender holding secret would put in
// X-Shopify-Hmac-Sha256 for body.
func Sign(body []byte, secret string) string {
	return computeSignature(body, []byte(secret))
}
