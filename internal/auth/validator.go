// Package auth validates bearer credentials issued by the external identity
// system. The service never mints user tokens; it only turns a validated
// token into an identity.Identity.
package auth

import (
	"errors"

	"github.com/zooconnect/ambassador-chat/internal/model/identity"
)

// ErrInvalidToken covers malformed, expired, or badly signed credentials.
var ErrInvalidToken = errors.New("invalid credential token")

// CredentialValidator is the capability the HTTP layer uses to authenticate
// callers. It is injected at startup; there is no ambient auth mode.
type CredentialValidator interface {
	Validate(token string) (identity.Identity, error)
}
