package providers

import "errors"

// Shared parse-failure causes. Every invoker maps these through
// NewMalformedError so a reply with no usable text is never mistaken for
// success.
var (
	errNoChoices = errors.New("reply contains no choices")
	errEmptyText = errors.New("reply contains empty text")
)
