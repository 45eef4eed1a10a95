package dto

import (
	"symposium/internal/apperr"

	"github.com/wb-go/wbf/ginext"
)

const InternalErrorDesc = "Service is currently unavailable. Please try again later."

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code    string         `json:"code"`
	Desc    string         `json:"desc"`
	Context map[string]any `json:"context,omitempty"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(400, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error: &Error{
			Code: apperr.ServiceUnavailable,
			Desc: InternalErrorDesc,
		},
	})
}

// AppError renders a structured failure. Errors that did not originate as an
// apperr get the generic 500 envelope so no internal detail leaks.
func AppError(c *ginext.Context, err error) {
	e, ok := apperr.From(err)
	if !ok {
		InternalServerError(c)
		return
	}
	c.JSON(apperr.HTTPStatus(e.Code), Response{
		Status: "error",
		Error: &Error{
			Code:    e.Code,
			Desc:    e.Desc,
			Context: e.Ctx,
		},
	})
}

func UnauthorizedError(c *ginext.Context) {
	c.JSON(401, Response{
		Status: "error",
		Error: &Error{
			Code: apperr.Unauthorized,
			Desc: "Missing or invalid admin credentials",
		},
	})
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{
		Status: "ok",
		Data:   data,
	})
}
