// Package routes wires controllers and middleware into the HTTP router.
package routes

import (
	"net/http"
	"strings"

	"dblog/app/chain"
	"dblog/app/controllers"
	"dblog/app/indexer"
	"dblog/app/middleware"
	"dblog/app/services"
	"dblog/app/storage"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Dependencies are the components the router serves. Posts and View are
// optional; their routes are only mounted when set.
type Dependencies struct {
	Node       *chain.Node
	Store      storage.ContentStore
	Posts      *services.PostService
	View       indexer.View
	GatewayURL string
	Logger     *zap.Logger
}

// SetupRoutes builds the router for the node RPC and the blog API.
func SetupRoutes(deps Dependencies) *mux.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// content hashes are opaque and may carry an escaped slash
	router := mux.NewRouter().UseEncodedPath()

	// Apply global middleware.
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recoverer(logger))
	router.Use(middleware.ContentTypeJSON)

	// mux skips middleware when no route matches
	router.NotFoundHandler = middleware.RequestID(http.HandlerFunc(notFound))
	router.MethodNotAllowedHandler = middleware.RequestID(http.HandlerFunc(methodNotAllowed))

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	}).Methods("GET")

	// Node RPC.
	if deps.Node != nil {
		rpc := controllers.NewRPCController(deps.Node, deps.Store, logger.Named("rpc"))
		r := router.PathPrefix("/rpc").Subrouter()
		r.HandleFunc("/chain", rpc.Chain).Methods("GET")
		r.HandleFunc("/transactions", rpc.SendTransaction).Methods("POST")
		r.HandleFunc("/transactions/{hash}/receipt", rpc.Receipt).Methods("GET")
		r.HandleFunc("/accounts/{address}/nonce", rpc.Nonce).Methods("GET")
		r.HandleFunc("/posts", rpc.Posts).Methods("GET")
		r.HandleFunc("/posts/{id:[0-9]+}", rpc.Post).Methods("GET")
		r.HandleFunc("/posts/hash/{hash}", rpc.PostByHash).Methods("GET")
		r.HandleFunc("/events", rpc.Events).Methods("GET")
		if deps.Store != nil {
			r.HandleFunc("/blobs", rpc.PutBlob).Methods("POST")
			r.HandleFunc("/blobs/{id}", rpc.GetBlob).Methods("GET")
		}
	}

	api := router.PathPrefix("/api").Subrouter()

	// Posts API endpoints.
	if deps.Posts != nil {
		posts := controllers.NewPostController(deps.Posts, strings.TrimRight(deps.GatewayURL, "/"))
		apiPosts := api.PathPrefix("/posts").Subrouter()
		apiPosts.HandleFunc("", posts.Index).Methods("GET")
		apiPosts.HandleFunc("", posts.Create).Methods("POST")
		apiPosts.HandleFunc("/{id:[0-9]+}", posts.Show).Methods("GET")
		apiPosts.HandleFunc("/{id:[0-9]+}", posts.Edit).Methods("PUT")
		apiPosts.HandleFunc("/hash/{hash}", posts.ShowByHash).Methods("GET")
		api.HandleFunc("/images", posts.UploadImage).Methods("POST")
	}

	// Indexed view endpoints.
	if deps.View != nil {
		index := controllers.NewIndexController(deps.View)
		api.HandleFunc("/index/posts", index.Index).Methods("GET")
		api.HandleFunc("/index/posts/{id:[0-9]+}", index.Show).Methods("GET")
	}

	return router
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusNotFound, "Not found", "route_not_found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed", "method_not_allowed")
}

func writeJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}
