package appMiddleware

type contextKey string

// IdentityKey holds the *types.Identity of the authenticated caller.
const IdentityKey contextKey = "identity"

// ClientIPKey holds the caller's address as seen after chi's RealIP.
const ClientIPKey contextKey = "client_ip"
