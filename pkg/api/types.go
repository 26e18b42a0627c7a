package api

import "github.com/platinummonkey/accounts/pkg/auth"

const statusSuccess = "success"

// UserData wraps a single principal. User is null when a lookup finds nothing.
type UserData struct {
	User *auth.Principal `json:"user"`
}

// UsersData wraps a list of principals
type UsersData struct {
	Users []*auth.Principal `json:"users"`
}

// TokenResponse is returned by login and signup
type TokenResponse struct {
	Status string   `json:"status"`
	Token  string   `json:"token"`
	Data   UserData `json:"data"`
}

// UserResponse is returned by the single-principal admin routes
type UserResponse struct {
	Status string   `json:"status"`
	Data   UserData `json:"data"`
}

// ListResponse is returned by the admin list route
type ListResponse struct {
	Status  string    `json:"status"`
	Results int       `json:"results"`
	Data    UsersData `json:"data"`
}
