package models

// User is the authenticated account as returned by the backend
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// DirectoryUser is an entry of the user directory
type DirectoryUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	PublicKey string `json:"public_key,omitempty"`
}

// Profile holds the fields collected on registration
type Profile struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// ProfileUpdate holds the editable account fields
type ProfileUpdate struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// PasswordChange is the body of a change-password call
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}
