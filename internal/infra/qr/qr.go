// Package qr renders and caches the QR artifact for a capture's verification
// URL. The image is a pure function of (capture id, base URL), so it is
// regenerable at any time and safe to produce lazily.
package qr

import (
	qrcode "github.com/skip2/go-qrcode"

	"picproof/internal/infra/storage"
)

const imageSize = 256

type Generator struct {
	store *storage.Store
}

func NewGenerator(store *storage.Store) *Generator {
	return &Generator{store: store}
}

// Ensure returns the storage key of the QR image for verifyURL, rendering it
// only when not already cached. A concurrent regeneration race is benign:
// both writers produce identical bytes and the store renames atomically.
func (g *Generator) Ensure(captureID, verifyURL string) (string, error) {
	key := storage.Key(storage.NamespaceQR, captureID+".png")
	if g.store.Exists(key) {
		return key, nil
	}
	png, err := qrcode.Encode(verifyURL, qrcode.Medium, imageSize)
	if err != nil {
		return "", err
	}
	if err := g.store.Write(key, png); err != nil {
		return "", err
	}
	return key, nil
}
