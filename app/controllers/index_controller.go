package controllers

import (
	"net/http"
	"strconv"

	"dblog/app/indexer"
	"dblog/app/models"

	"github.com/gorilla/mux"
)

// IndexController serves the indexer's materialized view.
type IndexController struct {
	view indexer.View
}

func NewIndexController(view indexer.View) *IndexController {
	return &IndexController{view: view}
}

// Index lists indexed posts. Supported filters: published=true, q=<title
// substring>, publisher=<address>.
func (ic *IndexController) Index(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := indexer.Query{
		TitleContains: params.Get("q"),
		Publisher:     models.NormalizeAddress(params.Get("publisher")),
	}
	if s := params.Get("published"); s != "" {
		published, err := strconv.ParseBool(s)
		if err != nil {
			badRequest(w, "Invalid published parameter")
			return
		}
		q.PublishedOnly = published
	}

	records, err := ic.view.List(r.Context(), q)
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, http.StatusOK, records)
}

// Show returns one indexed post.
func (ic *IndexController) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		badRequest(w, "Invalid post ID")
		return
	}
	rec, err := ic.view.Get(r.Context(), id)
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, http.StatusOK, rec)
}
