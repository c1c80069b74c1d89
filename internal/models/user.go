package models

// UserRole represents the roles carried in access tokens issued by the surrounding system.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleSupervisor UserRole = "SUPERVISOR"
	RoleAttorney   UserRole = "ATTORNEY"
	RoleParalegal  UserRole = "PARALEGAL"
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Page normalises paging input and returns the SQL offset.
func Page(page, size, maxSize int) (int, int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	return page, size, (page - 1) * size
}
