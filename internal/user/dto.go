// AngelaMos | 2026
// dto.go

package user

// UpdateMeRequest carries the self-service profile fields. Password
// fields are decoded only so they can be rejected.
type UpdateMeRequest struct {
	Name            *string `json:"name,omitempty"`
	Photo           *string `json:"photo,omitempty"`
	Password        *string `json:"password,omitempty"`
	PasswordConfirm *string `json:"passwordConfirm,omitempty"`
}

func (r UpdateMeRequest) TouchesPassword() bool {
	return r.Password != nil || r.PasswordConfirm != nil
}

// apply copies only the whitelisted profile fields onto u.
func (r UpdateMeRequest) apply(u *User) {
	if r.Name != nil {
		u.Name = *r.Name
	}
	if r.Photo != nil {
		u.Photo = *r.Photo
	}
}
