// AngelaMos | 2026
// response.go

package core

import (
	"encoding/json"
	"net/http"
)

const StatusSuccess = "success"

type Envelope struct {
	Status  string `json:"status"`
	Results *int   `json:"results,omitempty"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
	User    any    `json:"user,omitempty"`
	Users   any    `json:"users,omitempty"`
	Data    *Data  `json:"data,omitempty"`
}

type Data struct {
	Data any `json:"data"`
}

type ErrorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response write
	_ = json.NewEncoder(w).Encode(body)
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{
		Status: StatusSuccess,
		Data:   &Data{Data: data},
	})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Envelope{
		Status: StatusSuccess,
		Data:   &Data{Data: data},
	})
}

func List(w http.ResponseWriter, data any, count int) {
	JSON(w, http.StatusOK, Envelope{
		Status:  StatusSuccess,
		Results: &count,
		Data:    &Data{Data: data},
	})
}

func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{
		Status:  StatusSuccess,
		Message: message,
	})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
