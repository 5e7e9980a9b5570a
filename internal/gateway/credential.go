package gateway

import (
	"context"
)

type credentialKey struct{}

// WithCredential returns a context carrying the caller's opaque auth
// credential (the session cookie issued by the exam backend). The gateway
// forwards it verbatim; this service never mints or inspects credentials.
func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey{}, credential)
}

// CredentialFrom extracts the forwarded credential, or "" when absent.
func CredentialFrom(ctx context.Context) string {
	cred, _ := ctx.Value(credentialKey{}).(string)
	return cred
}
