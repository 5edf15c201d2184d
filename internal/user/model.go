package user

// Profile is the public view of the signed-in account.
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResetInput struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

type TokenInput struct {
	AccessToken string `json:"access_token"`
}
