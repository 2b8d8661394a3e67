package api

import (
	"net/http"
	"strconv"

	"github.com/anjalik1505/town-functions-sub002/internal/api/respond"
	"github.com/anjalik1505/town-functions-sub002/internal/auth"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

// caller resolves the acting user from the bearer token. On failure the 401
// has already been written and the handler must return.
func caller(w http.ResponseWriter, r *http.Request, v auth.Verifier) (string, bool) {
	token, err := auth.ExtractBearer(r)
	if err != nil {
		respond.WriteUnauthorized(w, err.Error())
		return "", false
	}
	uid, err := v.Verify(r.Context(), token)
	if err != nil {
		respond.WriteUnauthorized(w, err.Error())
		return "", false
	}
	return uid, true
}

// pageFrom reads the limit and cursor query parameters.
func pageFrom(r *http.Request) store.Page {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	return store.Page{Limit: limit, Cursor: q.Get("cursor")}
}
