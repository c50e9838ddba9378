package auth

// Roles with elevated access. Any other role string is a valid, low-privilege
// role.
const (
	RoleHealthWorker = "health_worker"
	RoleSysAdmin     = "sys_admin"
)

// User is an account allowed to call the API. Password holds a bcrypt hash
// (or a legacy plaintext value) and is never serialized.
type User struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Country        string `json:"country"`
	Institution    string `json:"institution"`
	Position       string `json:"position"`
	NationalID     string `json:"national_id"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Password       string `json:"-"`
	Role           string `json:"role"`
	HealthCenterID *int64 `json:"health_center_id"`
}

// Privileged reports whether u is a health worker or a system administrator.
func (u *User) Privileged() bool {
	return u.Role == RoleHealthWorker || u.Role == RoleSysAdmin
}
