package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
)

// Identity is an admin signed in through the hosted identity provider.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
}

type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (Identity, error)
}

// FirebaseVerifier accepts Firebase Authentication ID tokens. Every signed-in
// Firebase user of the project is an admin.
type FirebaseVerifier struct {
	client *fbauth.Client
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("create firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Identity{}, err
	}
	id := Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		id.Email = email
	}
	return id, nil
}
