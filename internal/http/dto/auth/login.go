// Package auth contiene los DTOs del login classlink.
package auth

// LoginRequest es el formulario que el host reenvía.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse es la decisión del hook. User solo viene cuando el login
// debe completarse con esa cuenta.
type LoginResponse struct {
	Continue bool         `json:"continue"`
	User     *UserSummary `json:"user,omitempty"`
}

type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Auth     string `json:"auth"`
}
