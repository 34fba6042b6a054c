package domain

// User is the projection of the user directory the chat core reads.
// Credentials stay with the account subsystem and never reach this type.
type User struct {
	ID       string
	Username string
	Email    string
}
