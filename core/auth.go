package core

import "time"

// Binding ties an issued nonce to the client that requested it
type Binding struct {
	ID        string    // Unique identifier, used as the consumption key
	Nonce     string    // Random nonce the wallet must embed in its message
	IssuedAt  time.Time // When the nonce was issued
	ExpiresAt time.Time // When the binding stops being accepted
}

// AuthPayload is the wallet's proof as submitted by the client
type AuthPayload struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Address   string `json:"address"`
	Version   int    `json:"version"`
	ErrorCode string `json:"error_code,omitempty"`
}

// PayloadStatusError is reported by the wallet when the user declined or the command failed
const PayloadStatusError = "error"

// VerifiedIdentity is the result of a successful verification
type VerifiedIdentity struct {
	Address string       // Checksummed address that signed the message
	Message *SiweMessage // Parsed message fields
}

// Identity is the application-level principal keyed by wallet address
type Identity struct {
	ID                string
	WalletAddress     string
	Username          *string
	ProfilePictureURL *string
	CreatedAt         time.Time
	IsNewUser         bool // Set only by the call that created the record
}

// Session represents an authenticated session credential
type Session struct {
	ID            string    // Token id, used for revocation
	UserID        string    // Identity id
	WalletAddress string    // Authenticated address
	IssuedAt      time.Time // When the session was minted
	ExpiresAt     time.Time // When the session stops being accepted
}
