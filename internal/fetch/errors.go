package fetch

import "errors"

var (
	ErrNotFound    = errors.New("no chain data for this symbol")
	ErrRateLimited = errors.New("rate limited by provider")
	ErrAuthFailed  = errors.New("provider authentication failed")
)
