package controllers

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
)

// pathVar returns the unescaped value of a route variable. The router matches on
// the encoded path, so a value may carry an escaped slash. A malformed escape
// answers 400.
func pathVar(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v, err := url.PathUnescape(mux.Vars(r)[name])
	if err != nil {
		badRequest(w, "Invalid "+name)
		return "", false
	}
	return v, true
}
