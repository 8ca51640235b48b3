package auth

// Token is the access token pair returned by the implicit flow. It is also the
// value the session cache persists between runs.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (t Token) Valid() bool {
	return t.AccessToken != "" && t.TokenType != ""
}

// Identity is what the provider reports about the token owner.
type Identity struct {
	DisplayName string `json:"display_name"`
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
}

// AllowlistEntry pairs a provider display name with the handle the host form
// submits for that account.
type AllowlistEntry struct {
	DisplayName   string `json:"display_name"`
	AccountHandle string `json:"account_handle"`
}
