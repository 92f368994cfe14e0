package qr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
)

func TestCodecEncode(t *testing.T) {
	codec := NewCodec()

	t.Run("emits the wire field names", func(t *testing.T) {
		balance := int64(99)
		data, err := codec.Encode(&models.QrPayload{
			SubjectExternalID: "E12345",
			IssuedAt:          "2024-01-01T12:00:00Z",
			Signature:         "sig-42",
			DisplayName:       "Alex Doe",
			BalanceAfter:      &balance,
			Transaction: &models.TransactionSummary{
				Amount:      1,
				Description: "Meal served",
			},
		})
		assert.NoError(t, err)

		var fields map[string]json.RawMessage
		assert.NoError(t, json.Unmarshal([]byte(data), &fields))
		for _, key := range []string{"employee_id", "timestamp", "device_signature", "name", "balance", "transaction"} {
			assert.Contains(t, fields, key)
		}
	})

	t.Run("optional fields omitted when empty", func(t *testing.T) {
		data, err := codec.Encode(&models.QrPayload{
			SubjectExternalID: "E12345",
			IssuedAt:          "2024-01-01T12:00:00Z",
			Signature:         "sig-42",
		})
		assert.NoError(t, err)

		var fields map[string]json.RawMessage
		assert.NoError(t, json.Unmarshal([]byte(data), &fields))
		assert.NotContains(t, fields, "name")
		assert.NotContains(t, fields, "balance")
		assert.NotContains(t, fields, "transaction")
	})
}

func TestCodecDecode(t *testing.T) {
	codec := NewCodec()

	t.Run("round trip", func(t *testing.T) {
		original := &models.QrPayload{
			SubjectExternalID: "E12345",
			IssuedAt:          "2024-01-01T12:00:00Z",
			Signature:         "sig-42",
			DisplayName:       "Alex Doe",
		}
		data, err := codec.Encode(original)
		assert.NoError(t, err)

		decoded, err := codec.Decode(data)
		assert.NoError(t, err)
		assert.Equal(t, original, decoded)
	})

	t.Run("not json is malformed", func(t *testing.T) {
		_, err := codec.Decode("not json at all")
		assert.ErrorIs(t, err, models.ErrMalformedPayload)
	})

	t.Run("missing employee_id is malformed", func(t *testing.T) {
		_, err := codec.Decode(`{"timestamp":"2024-01-01T12:00:00Z","device_signature":"sig-42"}`)
		assert.ErrorIs(t, err, models.ErrMalformedPayload)
	})

	t.Run("missing timestamp is malformed", func(t *testing.T) {
		_, err := codec.Decode(`{"employee_id":"E12345","device_signature":"sig-42"}`)
		assert.ErrorIs(t, err, models.ErrMalformedPayload)
	})

	t.Run("missing device_signature is malformed", func(t *testing.T) {
		_, err := codec.Decode(`{"employee_id":"E12345","timestamp":"2024-01-01T12:00:00Z"}`)
		assert.ErrorIs(t, err, models.ErrMalformedPayload)
	})

	t.Run("extra fields tolerated", func(t *testing.T) {
		decoded, err := codec.Decode(`{"employee_id":"E12345","timestamp":"2024-01-01T12:00:00Z","device_signature":"sig-42","future_field":true}`)
		assert.NoError(t, err)
		assert.Equal(t, "E12345", decoded.SubjectExternalID)
	})
}

func TestCodecRenderPNG(t *testing.T) {
	codec := NewCodec()
	image, err := codec.RenderPNG(&models.QrPayload{
		SubjectExternalID: "E12345",
		IssuedAt:          "2024-01-01T12:00:00Z",
		Signature:         "sig-42",
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, image)
}
