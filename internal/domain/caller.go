package domain

// Caller is the authenticated identity behind a request, as issued by the
// identity provider. DisplayName and Email may be empty.
type Caller struct {
	UserID      string
	DisplayName string
	Email       string
}
