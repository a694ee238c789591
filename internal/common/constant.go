package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Token kinds carried in the "typ" claim.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)
