package domain

// TokenPurpose tags a link token with the single operation it may complete.
type TokenPurpose string

const (
	// PurposeEmailVerification marks tokens minted for the verify-email flow.
	PurposeEmailVerification TokenPurpose = "email_verification"
	// PurposePasswordReset marks tokens minted for the reset-password and
	// create-password flows.
	PurposePasswordReset TokenPurpose = "password_reset"
)

// LinkClaims is the claim set embedded in signed link tokens. It is never
// persisted; it exists only inside the signed artifact.
type LinkClaims struct {
	Email   string
	Purpose TokenPurpose
}
