package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"dblog/app/models"
	"dblog/app/services"

	"github.com/gorilla/mux"
)

// PostRequest is the payload of create and update calls.
type PostRequest struct {
	Title      string `json:"title" validate:"max=256"`
	Content    string `json:"content"`
	CoverImage string `json:"coverImage,omitempty"`
	// Published defaults to true on update.
	Published *bool `json:"published,omitempty"`
}

// PostListResponse lists registry records in id order.
type PostListResponse struct {
	Posts []*models.Post `json:"posts"`
}

// ImageResponse identifies an uploaded cover image.
type ImageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// PostController handles HTTP requests for blog posts
type PostController struct {
	postService *services.PostService
	gatewayURL  string
}

// NewPostController creates a new PostController
func NewPostController(postService *services.PostService, gatewayURL string) *PostController {
	return &PostController{postService: postService, gatewayURL: gatewayURL}
}

// Index handles listing all posts
func (pc *PostController) Index(w http.ResponseWriter, r *http.Request) {
	posts, err := pc.postService.ListPosts(r.Context())
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, http.StatusOK, PostListResponse{Posts: posts})
}

// Show handles displaying a single post
func (pc *PostController) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		badRequest(w, "Invalid post ID")
		return
	}
	view, err := pc.postService.GetPost(r.Context(), id)
	pc.sendView(w, view, err)
}

// ShowByHash displays the post currently carrying a content hash.
func (pc *PostController) ShowByHash(w http.ResponseWriter, r *http.Request) {
	hash, ok := pathVar(w, r, "hash")
	if !ok {
		return
	}
	view, err := pc.postService.GetPostByHash(r.Context(), hash)
	pc.sendView(w, view, err)
}

// Create handles creating a new post
func (pc *PostController) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePostRequest(w, r)
	if !ok {
		return
	}
	post, err := pc.postService.CreatePost(r.Context(), req.Title, req.Content, req.CoverImage)
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, post)
}

// Edit handles editing an existing post
func (pc *PostController) Edit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		badRequest(w, "Invalid post ID")
		return
	}
	req, ok := decodePostRequest(w, r)
	if !ok {
		return
	}
	published := true
	if req.Published != nil {
		published = *req.Published
	}

	post, err := pc.postService.UpdatePost(r.Context(), id, req.Title, req.Content, req.CoverImage, published)
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, http.StatusOK, post)
}

// UploadImage stores a cover image sent either as a multipart "file" field or
// as the raw request body.
func (pc *PostController) UploadImage(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, MaxBlobSize)
	var src io.Reader = body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = body
		file, _, err := r.FormFile("file")
		if err != nil {
			badRequest(w, "Missing file field: "+err.Error())
			return
		}
		defer file.Close()
		src = file
	}

	data, err := io.ReadAll(src)
	if err != nil {
		sendError(w, "Failed to read image: "+err.Error(), http.StatusRequestEntityTooLarge, "invalid_input")
		return
	}
	id, err := pc.postService.UploadCoverImage(r.Context(), data)
	if err != nil {
		sendErr(w, err)
		return
	}
	resp := ImageResponse{ID: id}
	if pc.gatewayURL != "" {
		resp.URL = pc.gatewayURL + "/" + id
	}
	sendJSON(w, http.StatusCreated, resp)
}

func (pc *PostController) sendView(w http.ResponseWriter, view *services.PostView, err error) {
	if err == nil {
		sendJSON(w, http.StatusOK, view)
		return
	}
	status, code := StatusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}
	if status == http.StatusInternalServerError {
		resp.Error = "internal server error"
	}
	if view != nil && (errors.Is(err, services.ErrContentUnavailable) || errors.Is(err, services.ErrInvalidContent)) {
		resp.Post = view
	}
	sendJSON(w, status, resp)
}

func decodePostRequest(w http.ResponseWriter, r *http.Request) (*PostRequest, bool) {
	var req PostRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBlobSize)).Decode(&req); err != nil {
		badRequest(w, "Invalid JSON: "+err.Error())
		return nil, false
	}
	if err := models.Validator().Struct(&req); err != nil {
		badRequest(w, err.Error())
		return nil, false
	}
	return &req, true
}
