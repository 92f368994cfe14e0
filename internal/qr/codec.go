package qr

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"

	"github.com/skip2/go-qrcode"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
)

// Codec serializes a signed payload into the transportable QR string and
// parses it back. Encoding is deterministic: fields are emitted in the fixed
// declaration order of models.QrPayload, so the signer's input can always be
// reconstructed from the wire form.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Encode(p *models.QrPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

// Decode parses a raw scanned string. A payload missing any of the three
// signature-relevant fields, or one that is not valid JSON at all, is a
// malformed payload. Signature verification and subject lookup are the
// caller's concern; decode does neither.
func (c *Codec) Decode(raw string) (*models.QrPayload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("%w: not valid JSON", models.ErrMalformedPayload)
	}

	for _, required := range []string{"employee_id", "timestamp", "device_signature"} {
		if _, ok := fields[required]; !ok {
			return nil, fmt.Errorf("%w: missing field %q", models.ErrMalformedPayload, required)
		}
	}

	var payload models.QrPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}
	return &payload, nil
}

// RenderPNG encodes the payload and renders it as a base64 PNG for display.
func (c *Codec) RenderPNG(p *models.QrPayload) (string, error) {
	data, err := c.Encode(p)
	if err != nil {
		return "", err
	}

	code, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("render QR: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code.Image(256)); err != nil {
		return "", fmt.Errorf("render QR: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
