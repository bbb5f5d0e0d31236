package domain

import "strings"

// User is the logged-in person. It lives only as long as the session.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// DisplayNameFromEmail returns the part of the address before the '@'.
func DisplayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
