package common

// DefaultApiKeyHeader is the HTTP header that carries a device API key when
// no other name is configured.
const DefaultApiKeyHeader = "ApiKey"

// AuthorizationHeader carries the human-user bearer token.
const AuthorizationHeader = "Authorization"
