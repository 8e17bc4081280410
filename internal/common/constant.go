// Package common contains constants shared by the CloudBox client packages.
package common

const (
	// AuthorizationHeaderName carries the bearer access token.
	AuthorizationHeaderName = "Authorization"

	// RequestIDHeaderName correlates a request with client log lines.
	RequestIDHeaderName = "X-Request-ID"

	// AppName is used for the default cache location and the CLI banner.
	AppName = "cloudbox"
)
