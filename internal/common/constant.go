// Package common contains shared constants and error kinds used across
// channelhub components.
package common

const (
	// AccessTokenCookieName and RefreshTokenCookieName are the HTTP-only
	// cookies set on login and refresh.
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"

	// AccessTokenHeaderName is the gRPC metadata key used to carry the
	// access token when the authorization header is not used.
	AccessTokenHeaderName = "access_token"

	// AuthorizationHeaderName carries "Bearer <token>" on HTTP and gRPC.
	AuthorizationHeaderName = "authorization"

	BearerPrefix = "Bearer "
)

// AccountServiceName is the gRPC service shared by server and CLI.
const AccountServiceName = "channelhub.accounts.v1.AccountService"

// AccountMethod returns the full gRPC method name, e.g.
// "/channelhub.accounts.v1.AccountService/Login".
func AccountMethod(method string) string {
	return "/" + AccountServiceName + "/" + method
}

// InvalidAccessTokenMessage is the public message for a rejected access
// token. Clients refresh their session when they see it.
const InvalidAccessTokenMessage = "invalid access token"
