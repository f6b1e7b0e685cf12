package handlers

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// ProfileResponse greets the authenticated identity.
type ProfileResponse struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type OnlineResponse struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

type DeletedResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
