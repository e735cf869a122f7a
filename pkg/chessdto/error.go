package chessdto

// ErrorResponse is the body of every failed call, soft or not.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// DomainError is what a client sees when the server answered success=false.
type DomainError struct {
	Status  int
	Message string
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "chess service error"
}
