package model

// User is the authenticated principal as returned by the backend login call.
type User struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	DisplayName string       `json:"displayName,omitempty"`
	Email       string       `json:"email,omitempty"`
	Roles       []string     `json:"roles"`
	Permissions []Permission `json:"permissions"`
}

// PermissionSet returns the user's permissions as a set.
func (u *User) PermissionSet() PermissionSet {
	if u == nil {
		return PermissionSet{}
	}
	return NewPermissionSet(u.Permissions...)
}

// LoginRequest is the credential body posted by the UI.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the data payload of a successful backend auth/login call.
type LoginResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}
