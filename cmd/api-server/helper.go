package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kridavyuha/auction-server/internals/apperr"

	"github.com/rs/zerolog"
)

var (
	ErrCouldNotParseBody = errors.New("could not parse request body")
	ErrCouldNotReadBody  = errors.New("could not read request body")
)

type httpResp struct {
	Status   int               `json:"status"`
	IsError  bool              `json:"is_error"`
	Error    string            `json:"error,omitempty"`
	Code     apperr.Code       `json:"code,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Data     interface{}       `json:"data,omitempty"`
}

func getBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidInput, ErrCouldNotReadBody.Error(), err)
	}
	err = json.Unmarshal(body, v)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidInput, ErrCouldNotParseBody.Error(), err)
	}
	return nil
}

// getOptionalBody is getBody for endpoints whose fields all have defaults.
func getOptionalBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidInput, ErrCouldNotReadBody.Error(), err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.Wrap(apperr.CodeInvalidInput, ErrCouldNotParseBody.Error(), err)
	}
	return nil
}

func sendResponse(rw http.ResponseWriter, resp httpResp) {
	out, err := json.Marshal(resp)
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		rw.Write([]byte(`{"status": 500, "is_error": true, "error": "could not marshal response"}`))
		return
	}
	rw.WriteHeader(resp.Status)
	rw.Write(out)
}

func sendData(rw http.ResponseWriter, status int, data interface{}) {
	sendResponse(rw, httpResp{Status: status, Data: data})
}

// sendError maps an error to its status and code. Anything that is not an
// *apperr.Error is logged and reported as an internal error.
func sendError(rw http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		sendResponse(rw, httpResp{
			Status:  http.StatusInternalServerError,
			IsError: true,
			Error:   "internal server error",
			Code:    apperr.CodeUnknown,
		})
		return
	}

	status := appErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("code", string(appErr.Code)).Msg("request failed")
	}
	sendResponse(rw, httpResp{
		Status:   status,
		IsError:  true,
		Error:    appErr.Message,
		Code:     appErr.Code,
		Metadata: appErr.Metadata,
	})
}
