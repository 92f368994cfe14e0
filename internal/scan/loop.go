package scan

import (
	"context"
	"errors"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
)

// ErrSourceClosed means the capture collaborator stopped producing decoded
// strings before a code was found.
var ErrSourceClosed = errors.New("scan source closed")

// Loop consumes decoded strings from a capture source until one of them
// contains a QR code worth presenting to the operator, then stops. The loop
// never blocks between samples beyond waiting for the next decode, and it is
// cancelable at any moment; the capture resource itself belongs to the
// collaborator, which ties its lifetime to ctx.
//
// Validation failures other than a malformed payload terminate the loop too:
// an unknown subject or a bad signature is an outcome the operator must see,
// not something to silently skip past.
func Loop(ctx context.Context, source <-chan string, v *Validator) (*Result, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case raw, ok := <-source:
			if !ok {
				return nil, ErrSourceClosed
			}
			result, err := v.Validate(raw)
			if err != nil {
				if errors.Is(err, models.ErrMalformedPayload) {
					// Not a canteen payload; keep sampling.
					continue
				}
				return result, err
			}
			return result, nil
		}
	}
}
