package session

import "errors"

// ErrInvalidToken covers every bearer failure mode: unknown token, expired
// session, malformed value. One indistinguishable error avoids probing.
var ErrInvalidToken = errors.New("invalid_token")
