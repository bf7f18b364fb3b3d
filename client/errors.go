package client

import (
	"github.com/cockroachdb/errors"
)

// Harvest errors
var (
	ErrHarvestFailed     = errors.New("harvest failed")
	ErrElementNotFound   = errors.New("element not found")
	ErrPageTimeout       = errors.New("page did not finish loading")
	ErrTokenNotFound     = errors.New("authorization token not found in form")
	ErrPersistenceFailed = errors.New("unable to write authorization record")
)

// Record errors
var (
	ErrMissingCredentials = errors.New("authorization record not found")
	ErrInvalidRecord      = errors.New("authorization record is incomplete")
)

// Submit errors
var (
	ErrTransport         = errors.New("reservation request failed")
	ErrMalformedResponse = errors.New("reservation response is not valid JSON")
)

const (
	hintRunLogin   = "run `courtreserve-bot login` first to harvest a fresh token"
	hintStaleToken = "the verification token may have expired; run `courtreserve-bot login` again"
)

// Hint returns the operator-facing remedy attached to err, if any.
func Hint(err error) string {
	return errors.FlattenHints(err)
}
