package models

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// Principal is an already-authenticated caller.
type Principal struct {
	UserID int        `json:"user_id"`
	Roles  []UserRole `json:"roles"`
}

func (p Principal) HasRole(role UserRole) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
