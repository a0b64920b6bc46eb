package signup

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

const maxRequestBody = 1 << 14 // 16 KB

// User-facing messages.
const (
	MsgSuccess     = "Thanks, captain! We will ping you before liftoff."
	MsgInvalid     = "Please enter a valid email address."
	MsgDuplicate   = "You're already on the list. We'll be in touch!"
	MsgUnavailable = "Signups are taking a breather. Please try again in a moment."
	MsgBadRequest  = "We couldn't read that request."
)

type response struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Routes registers the signup endpoints on mux.
func Routes(mux *http.ServeMux, svc *Service, log *zap.Logger) {
	mux.HandleFunc("POST /api/signup", Handler(svc, log))
	mux.HandleFunc("GET /health", Health())
}

// Handler accepts a JSON Request and answers with a JSON message.
func Handler(svc *Service, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, response{Message: MsgBadRequest, Error: "invalid_json"})
			return
		}
		if req.UserAgent == "" {
			req.UserAgent = r.UserAgent()
		}
		if req.Referrer == "" {
			req.Referrer = r.Referer()
		}
		if req.Locale == "" {
			req.Locale = r.Header.Get("Accept-Language")
		}

		_, err := svc.Submit(r.Context(), req)
		switch {
		case err == nil:
			writeJSON(w, http.StatusCreated, response{Message: MsgSuccess})
		case errors.Is(err, ErrInvalidEmail):
			writeJSON(w, http.StatusBadRequest, response{Message: MsgInvalid, Error: "invalid_email"})
		case errors.Is(err, ErrAlreadyExists):
			writeJSON(w, http.StatusConflict, response{Message: MsgDuplicate, Error: "already_exists"})
		default:
			log.Error("signup failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, response{Message: MsgUnavailable, Error: "unavailable"})
		}
	}
}

// Health reports liveness.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
