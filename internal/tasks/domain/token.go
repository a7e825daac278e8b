package domain

// TokenPair is what register, login and refresh hand back to a client: a
// short-lived access token presented on every request and a long-lived
// refresh token that can be redeemed once for a new pair.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType,omitempty"` // always "Bearer"
	ExpiresIn    int64  `json:"expiresIn"`           // seconds until the access token expires
}
