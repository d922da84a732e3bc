package photos

import (
	"fmt"

	"acmreport/server/internal/models"
)

// AssetDecodeError reports a photo reference that could not be turned into
// embeddable data. Temporary failures (network errors, 5xx, 429) are worth
// retrying; the rest are not.
type AssetDecodeError struct {
	Ref       models.PhotoReference
	Reason    string
	Temporary bool
	Err       error
}

func (e *AssetDecodeError) Error() string {
	source := string(e.Ref.Kind)
	if e.Ref.Kind == models.PhotoKindURL {
		source = e.Ref.Value
	}
	if e.Err != nil {
		return fmt.Sprintf("cannot embed photo (%s): %s: %v", source, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot embed photo (%s): %s", source, e.Reason)
}

func (e *AssetDecodeError) Unwrap() error {
	return e.Err
}
