package address

import "time"

type Address struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Label         string     `json:"label"`
	RecipientName string     `json:"recipient_name"`
	Phone         string     `json:"phone"`
	Street        string     `json:"street"`
	City          string     `json:"city"`
	Province      string     `json:"province"`
	PostalCode    string     `json:"postal_code"`
	IsDefault     bool       `json:"is_default"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// Input carries a create or partial update. Nil fields are left untouched.
type Input struct {
	UserID        string  `json:"user_id,omitempty"`
	Label         *string `json:"label,omitempty"`
	RecipientName *string `json:"recipient_name,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Street        *string `json:"street,omitempty"`
	City          *string `json:"city,omitempty"`
	Province      *string `json:"province,omitempty"`
	PostalCode    *string `json:"postal_code,omitempty"`
	IsDefault     *bool   `json:"is_default,omitempty"`
}

func (in Input) setsDefault() bool {
	return in.IsDefault != nil && *in.IsDefault
}
