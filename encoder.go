package tapestry

import (
	"errors"
	"fmt"

	"github.com/pthm/tapestry/lib/encoding"
)

// ClientDataEncoder turns values into opaque strings that are sent to the
// client and decoded when they come back. *encoding.Encoder implements it.
type ClientDataEncoder interface {
	Encode(v any) (string, error)
	Decode(s string, v any) error
}

var _ ClientDataEncoder = (*encoding.Encoder)(nil)

// NewClientDataEncoder creates the default encoder. Payloads are signed, or
// encrypted when encrypt is set.
func NewClientDataEncoder(key []byte, encrypt bool) (ClientDataEncoder, error) {
	enc, err := encoding.NewEncoder(key, encoding.WithEncryption(encrypt))
	if err != nil {
		return nil, fmt.Errorf("tapestry: %w", err)
	}
	return enc, nil
}

// wrapEncodingError maps encoding failures onto ErrInvalidFormData.
func wrapEncodingError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, encoding.ErrInvalidFormat) ||
		errors.Is(err, encoding.ErrSignatureInvalid) ||
		errors.Is(err, encoding.ErrDecryptFailed) ||
		errors.Is(err, encoding.ErrVersion) {
		return fmt.Errorf("%w: %v", ErrInvalidFormData, err)
	}
	return err
}
