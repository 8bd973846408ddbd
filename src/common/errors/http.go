package errors

import "net/http"

// Response is the JSON body of an error answer
type Response struct {
	Error   string `json:"error" example:"Not Found"`
	Code    int    `json:"code" example:"404"`
	Message string `json:"message" example:"Build not found"`
	// Reason is "<domain>.<code>"
	Reason string `json:"reason,omitempty" example:"job.not_found"`
}

// Reason returns the "<domain>.<code>" identifier of e
func (e *Error) Reason() string {
	return string(e.Domain) + "." + string(e.Code)
}

// ToResponse renders e for an HTTP body
func (e *Error) ToResponse() Response {
	return Response{
		Error:   http.StatusText(e.HTTPStatus),
		Code:    e.HTTPStatus,
		Message: e.Message,
		Reason:  e.Reason(),
	}
}

// NewResponse renders any error; non *Error values become a generic internal error
func NewResponse(err error) Response {
	var e *Error
	if As(err, &e) {
		return e.ToResponse()
	}
	return ErrInternal.ToResponse()
}
