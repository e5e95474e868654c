package poll

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/etymology/winderconsole/internal/loop"
)

// HashPassword returns the hex SHA-256 of salt followed by password.
func HashPassword(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

// Login runs the two-round handshake. Round one fetches the session salt and
// succeeds at once if the session is already authenticated; round two sends
// the salted hash. done runs on l with the result. A rejected password is
// reported as false with a nil error.
func Login(ctx context.Context, l *loop.Loop, auth Authenticator, password string, done func(ok bool, err error)) {
	loop.Spawn(l, ctx, auth.LoginChallenge, func(c Challenge, err error) {
		if err != nil {
			done(false, err)
			return
		}
		if c.Authenticated {
			done(true, nil)
			return
		}
		hash := HashPassword(c.Salt, password)
		loop.Spawn(l, ctx,
			func(ctx context.Context) (bool, error) {
				return auth.LoginSubmit(ctx, hash)
			},
			done,
		)
	})
}
