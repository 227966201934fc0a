package dto

// Response is the uniform success envelope: {"success": true, "data": ...}.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// ErrorResponse is the uniform failure envelope:
// {"success": false, "error": "..."}.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// PaginationInfo describes which slice of a collection a list response holds.
type PaginationInfo struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

// OK wraps a payload in the success envelope.
func OK(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// Error wraps a message in the failure envelope.
func Error(message string) ErrorResponse {
	return ErrorResponse{Success: false, Error: message}
}
