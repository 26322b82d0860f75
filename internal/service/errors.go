package service

import "errors"

// ErrInvalidArgument marks a request that failed validation before it
// reached storage. Handlers map it to a 400 response.
var ErrInvalidArgument = errors.New("invalid argument")
