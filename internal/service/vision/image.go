package vision

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	apperrors "github.com/DigiMedic/PillSee/pkg/errors"

	"github.com/DigiMedic/PillSee/internal/model"
)

// Base64 signatures of the accepted raw payloads.
const (
	jpegSignature = "/9j/"
	pngSignature  = "iVBORw0KGgo"
	dataURLPrefix = "data:image"
)

// normalizePayload validates the image payload and returns it as a data
// URL ready for the vision model. Already-prefixed data URLs pass through.
// Raw base64 must carry a JPEG or PNG signature; decodable images in any
// other format are re-encoded to JPEG with transparency flattened onto
// white.
func normalizePayload(payload string) (string, error) {
	payload = strings.TrimSpace(payload)

	if strings.HasPrefix(payload, dataURLPrefix) {
		return payload, nil
	}

	if !strings.HasPrefix(payload, jpegSignature) && !strings.HasPrefix(payload, pngSignature) {
		return "", apperrors.NewUnsupportedImage("unrecognized image format")
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", apperrors.NewUnsupportedImage("invalid base64 image payload")
	}
	if len(raw) > model.MaxImageSizeBytes {
		return "", apperrors.NewUnsupportedImage("image exceeds maximum size")
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", apperrors.NewUnsupportedImage("image payload not decodable")
	}

	switch format {
	case "jpeg":
		return "data:image/jpeg;base64," + payload, nil
	case "png":
		return "data:image/png;base64," + payload, nil
	}

	reencoded, err := encodeJPEG(img)
	if err != nil {
		return "", apperrors.NewUnsupportedImage("image conversion failed")
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(reencoded), nil
}

// encodeJPEG flattens the image onto a white background and encodes it as
// JPEG. JPEG has no alpha channel, so transparency must be composited out.
func encodeJPEG(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	flattened := image.NewRGBA(bounds)
	draw.Draw(flattened, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flattened, bounds, img, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flattened, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ValidPayload reports whether the payload looks like an accepted image
// without decoding it. Used for request validation before the pipeline.
func ValidPayload(payload string) bool {
	payload = strings.TrimSpace(payload)
	return strings.HasPrefix(payload, dataURLPrefix) ||
		strings.HasPrefix(payload, jpegSignature) ||
		strings.HasPrefix(payload, pngSignature)
}
