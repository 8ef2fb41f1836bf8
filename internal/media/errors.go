package media

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError. The caller should offer
	// another locale or transport.
	ErrNotFound = errors.New("not found")

	// ErrInternal is matched by every InternalError.
	ErrInternal = errors.New("internal error")

	// ErrDecrypt is wrapped by DecodeErrors that come from segment
	// ciphertext rather than a manifest.
	ErrDecrypt = errors.New("segment decryption failed")
)

// NotFoundError reports a requested locale or transport that is absent from
// a RawStreamSet.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InternalError reports a broken invariant, for example a variant used with
// the wrong addressing mode.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string { return e.Message }

// Is reports whether target is ErrInternal.
func (e *InternalError) Is(target error) bool { return target == ErrInternal }

// DecodeError reports malformed manifest or ciphertext bytes. Content holds
// the raw input so the caller can inspect it.
type DecodeError struct {
	Message string
	Content []byte
	URL     string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.URL, e.Message)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransportError is returned by HTTPFetcher when a fetch fails or the
// upstream answers with a non-2xx status.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func decodeError(url string, content []byte, err error) *DecodeError {
	return &DecodeError{Message: err.Error(), Content: content, URL: url, Err: err}
}
