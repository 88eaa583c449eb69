package repositories

import (
	goerrors "errors"
	"fmt"

	"roomcast/errors"
)

// wrapStoreErr classifies a failed write. Domain sentinels raised inside
// the transaction pass through untouched; anything else is a storage fault
// and surfaces as ErrPersistence.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		errors.ErrUserAlreadyExists,
		errors.ErrRoomNotFound,
		errors.ErrMessageNotFound,
	} {
		if goerrors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
}
