package entity

// Role controls access to the admin API.
// Role hierarchy: RoleViewer < RoleEditor < RoleAdmin.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// User is an API user authenticated by bearer token. Users come from the
// config file or from the users collection in MongoDB.
type User struct {
	Username string `json:"username" bson:"username" yaml:"username" validate:"required"`
	Name     string `json:"name" bson:"name" yaml:"name" validate:"omitempty"`
	Email    string `json:"email" bson:"email" yaml:"email" validate:"omitempty,email"`
	Token    string `json:"-" bson:"token" yaml:"token" validate:"required,min=1"`
	Role     Role   `json:"role" bson:"role" yaml:"role"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName falls back to the username when no name is set
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
