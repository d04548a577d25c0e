package authapi

import (
	"time"

	"clientauth/cmd/identity"
)

type signupRequest struct {
	ClientName string `json:"client_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type verifyResetTokenRequest struct {
	Token string `json:"token"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// AccountResponse is the API shape for account records. It never carries
// password material. Exported because the clients API returns the same shape.
type AccountResponse struct {
	ID         string     `json:"id"`
	ClientName string     `json:"client_name"`
	Email      string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type verifyResetTokenResponse struct {
	ClientID string `json:"client_id"`
}

// ToAccountResponse converts a stored account into its API shape.
func ToAccountResponse(a identity.Account) AccountResponse {
	return AccountResponse{
		ID:         a.ID,
		ClientName: a.ClientName,
		Email:      a.Email,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}
