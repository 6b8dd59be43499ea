package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/skillmarket/cart-service/internal/domain/cart"
	"github.com/skillmarket/cart-service/internal/domain/course"
)

var errInvalidBody = errors.New("invalid request body")

// writeError maps the domain error taxonomy onto HTTP statuses:
// not-found 404, conflict 409, malformed token 422, collaborator outage
// 503. Anything unrecognized is a 500 with the detail kept server-side.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrLineNotFound), errors.Is(err, course.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, cart.ErrLineExists):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, cart.ErrMalformedToken):
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, cart.ErrCollaboratorUnavailable):
		writeMessage(w, http.StatusServiceUnavailable, "upstream unavailable")
	default:
		zctx.From(r.Context()).Error("unhandled cart error", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, e)
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
