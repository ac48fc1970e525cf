package ctl

import "inkpad/ctlapi"

// Factory helpers returning *ctlapi.Error (single canonical error type).
func ErrBadRequest(detail string) *ctlapi.Error {
	return &ctlapi.Error{Status: 400, Title: "Bad Request", Detail: detail}
}

func ErrNotFound(detail string) *ctlapi.Error {
	return &ctlapi.Error{Status: 404, Title: "Not Found", Detail: detail}
}

func ErrUnauthorized(detail string) *ctlapi.Error {
	return &ctlapi.Error{Status: 401, Title: "Unauthorized", Detail: detail}
}

func ErrInternal(detail string) *ctlapi.Error {
	return &ctlapi.Error{Status: 500, Title: "Internal Server Error", Detail: detail}
}

// WrapError normalizes any error into *ctlapi.Error.
func WrapError(err error) *ctlapi.Error {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*ctlapi.Error); ok {
		return ae
	}
	return ErrInternal(err.Error())
}
