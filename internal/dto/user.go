package dto

// RegisterUserRequest creates or refreshes the caller's account. Admin cannot be self-assigned.
type RegisterUserRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	PhotoURL string `json:"photoUrl" validate:"omitempty,url"`
	Role     string `json:"role" validate:"omitempty,oneof=student tutor"`
}

// UpdateUserRoleRequest is an admin role change.
type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=student tutor admin"`
}

// UpdateUserStatusRequest blocks or unblocks an account.
type UpdateUserStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active blocked"`
}

// UserQuery mirrors user listing filters.
type UserQuery struct {
	Role     string `form:"role"`
	Status   string `form:"status"`
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
