package server

import (
	"encoding/json"
	"net/http"
)

const problemTypeBase = "https://plcfleet.dev/problems/"

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound     = problemTypeBase + "not-found"
	ProblemTypeBadRequest   = problemTypeBase + "bad-request"
	ProblemTypeInternal     = problemTypeBase + "internal-error"
	ProblemTypeUnauthorized = problemTypeBase + "unauthorized"
	ProblemTypeForbidden    = problemTypeBase + "forbidden"
	ProblemTypeRateLimited  = problemTypeBase + "rate-limited"
	ProblemTypeConflict     = problemTypeBase + "conflict"
)

// Problem is an RFC 7807 Problem Details body.
type Problem struct {
	Type     string `json:"type" example:"https://plcfleet.dev/problems/bad-request"`
	Title    string `json:"title" example:"Bad Request"`
	Status   int    `json:"status" example:"400"`
	Detail   string `json:"detail,omitempty" example:"polling interval must be at least 100ms"`
	Instance string `json:"instance,omitempty" example:"/api/v1/inventory/devices"`
}

// WriteProblem writes p as an application/problem+json response.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeTyped(w http.ResponseWriter, problemType string, status int, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     problemType,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// NotFound writes a 404 problem response.
func NotFound(w http.ResponseWriter, detail, instance string) {
	writeTyped(w, ProblemTypeNotFound, http.StatusNotFound, detail, instance)
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	writeTyped(w, ProblemTypeBadRequest, http.StatusBadRequest, detail, instance)
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	writeTyped(w, ProblemTypeInternal, http.StatusInternalServerError, detail, instance)
}

// RateLimited writes a 429 problem response.
func RateLimited(w http.ResponseWriter, detail, instance string) {
	writeTyped(w, ProblemTypeRateLimited, http.StatusTooManyRequests, detail, instance)
}
