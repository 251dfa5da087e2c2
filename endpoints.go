package psyclient

// Backend endpoint paths, relative to Config.API.BaseURL. Trailing slashes
// matter: the Django backend redirects without them and a redirect drops the
// POST body.
const (
	endpointLogin           = "/auth/login/"
	endpointRegister        = "/auth/register/"
	endpointTokenRefresh    = "/auth/token/refresh/"
	endpointTokenVerify     = "/auth/token/verify/"
	endpointLogout          = "/auth/logout/"
	endpointMe              = "/auth/me/"
	endpointForgotPassword  = "/auth/password/reset/"
	endpointConfirmPassword = "/auth/password/reset/confirm/"
	endpointChangePassword  = "/auth/change-password/"
	endpointProfile         = "/users/profile/"
)
