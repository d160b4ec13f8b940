package model

import "time"

// Session backs a bearer token; its ID is the token's jti.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string
	Role      string
	SessionID string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination describes a page of total items. A zero limit means the
// whole set fits on one page.
func NewPagination(page, limit, total int) Pagination {
	if page < 1 {
		page = 1
	}
	p := Pagination{Page: page, Limit: limit, Total: total, Pages: 1}
	if limit > 0 {
		p.Pages = (total + limit - 1) / limit
		if p.Pages == 0 {
			p.Pages = 1
		}
	}
	return p
}

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)
