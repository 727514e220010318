package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when an operation needs a user identity and got none.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidDate is returned when a toggle targets any day other than today.
	ErrInvalidDate = errors.New("invalid date")
	// ErrNotFoundOrForbidden hides whether a record is missing or owned by someone else.
	ErrNotFoundOrForbidden = errors.New("not found or forbidden")
	// ErrToggleConflict means concurrent toggles on the same day kept winning the race.
	ErrToggleConflict = errors.New("toggle conflict, retry")
)

// QuotaExceededError rejects a post once the civil-day quota is used up.
type QuotaExceededError struct {
	Count int64
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily post quota exceeded: %d/%d", e.Count, e.Limit)
}

// StorageError wraps every persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// txErr passes errors raised inside a transaction through and wraps the ones gorm raises
// around it (begin, commit) as storage failures.
func txErr(op string, err error) error {
	var quota *QuotaExceededError
	var storage *StorageError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFoundOrForbidden), errors.As(err, &quota), errors.As(err, &storage):
		return err
	}
	return storageErr(op, err)
}
