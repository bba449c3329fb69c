package integrations

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/auth"
)

// ErrUserNotFound means the identity provider has no account for the email.
var ErrUserNotFound = errors.New("user not found")

// IdentityResolver maps emails to Firebase Auth user ids.
type IdentityResolver struct {
	client *auth.Client
}

func NewIdentityResolver(client *auth.Client) *IdentityResolver {
	return &IdentityResolver{client: client}
}

func (r *IdentityResolver) ResolveUserID(ctx context.Context, email string) (string, error) {
	user, err := r.client.GetUserByEmail(ctx, email)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("lookup %s: %w", email, err)
	}
	return user.UID, nil
}
