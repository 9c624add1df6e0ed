package problemdetails

import "fmt"

const (
	TypeConfigurationError = "configuration-error"
	TypeInternalError      = "internal-error"
	TypeValidationError    = "validation-error"
)

type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func New(status int, problemType, title, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   fmt.Sprintf("https://openshortlink.dev/problems/%s", problemType),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}
