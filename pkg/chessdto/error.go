package chessdto

// ErrorResponse is returned with non-2xx statuses.
type ErrorResponse struct {
	Legal bool   `json:"legal"`
	Error string `json:"error"`
}

// DomainError is a client-side error carrying the arbiter's status and message.
type DomainError struct {
	Status  int
	Message string
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "arbiter error"
}
