package domain

// TokenPair is what a successful login or rotation returns: a short-lived
// access token and the single live refresh token for the account.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    int    `json:"expires_in"`           // access token lifetime in seconds
}

// MFAEnrollment is returned by 2FA setup: the pending secret, an
// otpauth:// provisioning URI, and the same URI rendered as a PNG data
// URL for direct display. The secret is not committed to the account
// until the setup code is verified.
type MFAEnrollment struct {
	Secret          string
	ProvisioningURI string
	QRCode          string
	Issuer          string
	Account         string
}
