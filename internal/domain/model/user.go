package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	HashedPassword    string     `json:"-"` // Not exposed
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Role              string     `json:"role"`
	ResetTokenHash    string     `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	LastLogin         *Timestamp `json:"lastLogin,omitempty"`
	CreatedAt         Timestamp  `json:"createdAt"`
	UpdatedAt         Timestamp  `json:"updatedAt"`
}

func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// FullName joins first and last name, falling back to the username.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}

func (u *User) Clone() *User {
	c := *u
	if u.ResetTokenExpires != nil {
		exp := *u.ResetTokenExpires
		c.ResetTokenExpires = &exp
	}
	if u.LastLogin != nil {
		ll := *u.LastLogin
		c.LastLogin = &ll
	}
	return &c
}

type UserQuery struct {
	Search string
	Role   string
	Page   int
	Limit  int
}
