package models

// Principal role names carried in access tokens
const (
	PrincipalAdmin    = "admin"
	PrincipalResident = "resident"
)

// Actor is the authenticated principal on whose behalf an operation runs.
// Handlers build it from the verified access token; services never infer it.
type Actor struct {
	ID         string
	Email      string
	Roles      []string
	FlatNumber string
}

// HasRole reports whether the actor carries role
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor is an administrator
func (a Actor) IsAdmin() bool {
	return a.HasRole(PrincipalAdmin)
}

// Session is returned after a successful login or refresh
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	ExpiresIn    int64       `json:"expires_in"`
	Role         string      `json:"role"`
	Redirect     string      `json:"redirect"`
	Principal    interface{} `json:"principal"`
}
