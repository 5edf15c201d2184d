package identity

import "time"

const RoleAdmin = "admin"

type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	AppMetadata      map[string]any `json:"app_metadata"`
}

// Role is the application role the provider stores in app_metadata.
// Accounts without one are plain authenticated users.
func (u *User) Role() string {
	if role, ok := u.AppMetadata["role"].(string); ok && role != "" {
		return role
	}
	return "authenticated"
}

type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}
