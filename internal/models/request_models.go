package models

// CredentialsRequest is the body for sign-up and sign-in.
type CredentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// PasswordResetRequest is the body for POST /auth/reset-password.
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// DueDateRequest is the body for PUT /me/due-date.
// A nil DueDate clears the stored due date. Dates use the YYYY-MM-DD layout of a date input.
type DueDateRequest struct {
	DueDate *string `json:"dueDate"`
}

// ChecklistItemRequest is the body for creating or editing a checklist item.
type ChecklistItemRequest struct {
	Text string `json:"text" binding:"required,min=1,max=200"`
}
