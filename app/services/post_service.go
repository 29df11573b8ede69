package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dblog/app/chain"
	"dblog/app/models"
	"dblog/app/repositories"
	"dblog/app/storage"

	"go.uber.org/zap"
)

const DefaultConfirmTimeout = 2 * time.Minute

// Config tunes the post service.
type Config struct {
	// ConfirmTimeout bounds the wait for a transaction receipt.
	ConfirmTimeout time.Duration
	// GatewayURL, when set, is prefixed to cover image identifiers.
	GatewayURL string
	// ValidateBodies runs the PostBody validation hook before storing.
	ValidateBodies bool
}

// PostView is a registry record joined with its resolved body.
type PostView struct {
	models.Post
	Content          string         `json:"content"`
	CoverImage       string         `json:"coverImage,omitempty"`
	CoverImageURL    string         `json:"coverImageUrl,omitempty"`
	Publisher        models.Address `json:"publisher,omitempty"`
	ContentAvailable bool           `json:"contentAvailable"`
}

// PostService writes post bodies to the content store and commits their
// identifiers to the registry through the signer.
type PostService struct {
	signer   Signer
	registry RegistryReader
	store    storage.ContentStore
	cfg      Config
	logger   *zap.Logger
}

// NewPostService creates a new PostService
func NewPostService(signer Signer, registry RegistryReader, store storage.ContentStore, cfg Config, logger *zap.Logger) *PostService {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	cfg.GatewayURL = strings.TrimRight(cfg.GatewayURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{
		signer:   signer,
		registry: registry,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// CreatePost stores the body and then registers its identifier. It returns the
// committed registry record.
func (s *PostService) CreatePost(ctx context.Context, title, content, coverImage string) (*models.Post, error) {
	sg := newSaga("create", 0, s.logger)

	author, ok := s.signer.CurrentAddress()
	if !ok {
		return nil, sg.fail(ErrNoAccount)
	}

	hash, err := s.storeBody(ctx, sg, &models.PostBody{
		Title:      title,
		Content:    content,
		CoverImage: coverImage,
		Publisher:  author,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := s.commit(ctx, sg, chain.Intent{
		Kind:        chain.CreatePost,
		Title:       title,
		ContentHash: hash,
	})
	if err != nil {
		return nil, err
	}

	post, err := s.registry.GetPostByID(ctx, receipt.PostID)
	if err != nil {
		return nil, sg.fail(err)
	}
	return post, nil
}

// UpdatePost stores the new body and commits it to post id. Ownership and
// existence are checked before anything is stored; the registry decides again
// at commit time.
func (s *PostService) UpdatePost(ctx context.Context, id int64, title, content, coverImage string, published bool) (*models.Post, error) {
	sg := newSaga("update", id, s.logger)

	author, ok := s.signer.CurrentAddress()
	if !ok {
		return nil, sg.fail(ErrNoAccount)
	}

	existing, err := s.registry.GetPostByID(ctx, id)
	if err != nil {
		return nil, sg.fail(err)
	}
	if !existing.IsAuthor(author) {
		return nil, sg.fail(repositories.ErrUnauthorized)
	}

	hash, err := s.storeBody(ctx, sg, &models.PostBody{
		Title:      title,
		Content:    content,
		CoverImage: coverImage,
		Publisher:  existing.Author,
	})
	if err != nil {
		return nil, err
	}

	_, err = s.commit(ctx, sg, chain.Intent{
		Kind:        chain.UpdatePost,
		PostID:      id,
		Title:       title,
		ContentHash: hash,
		Published:   published,
	})
	if err != nil {
		return nil, err
	}

	post, err := s.registry.GetPostByID(ctx, id)
	if err != nil {
		return nil, sg.fail(err)
	}
	return post, nil
}

// UploadCoverImage stores an image and returns its identifier.
func (s *PostService) UploadCoverImage(ctx context.Context, data []byte) (string, error) {
	sg := newSaga("upload", 0, s.logger)
	if len(data) == 0 {
		return "", sg.fail(fmt.Errorf("%w: empty image", ErrInvalidInput))
	}
	id, err := s.store.Put(ctx, data)
	if err != nil {
		return "", sg.fail(fmt.Errorf("%w: %w", ErrStoreFailed, err))
	}
	return id, nil
}

// GetPost reads post id and resolves its current body. When the body cannot be
// resolved the registry metadata is still returned alongside the error.
func (s *PostService) GetPost(ctx context.Context, id int64) (*PostView, error) {
	post, err := s.registry.GetPostByID(ctx, id)
	if err != nil {
		return nil, &SyncError{Op: "get", PostID: id, Err: err}
	}
	return s.resolve(ctx, post)
}

// GetPostByHash reads the post currently carrying contentHash.
func (s *PostService) GetPostByHash(ctx context.Context, contentHash string) (*PostView, error) {
	post, err := s.registry.GetPost(ctx, contentHash)
	if err != nil {
		return nil, &SyncError{Op: "get", ContentHash: contentHash, Err: err}
	}
	return s.resolve(ctx, post)
}

// ListPosts returns registry metadata for every post.
func (s *PostService) ListPosts(ctx context.Context) ([]*models.Post, error) {
	posts, err := s.registry.GetPosts(ctx)
	if err != nil {
		return nil, &SyncError{Op: "list", Err: err}
	}
	return posts, nil
}

func (s *PostService) resolve(ctx context.Context, post *models.Post) (*PostView, error) {
	view := &PostView{Post: *post}

	data, err := s.store.Get(ctx, post.ContentHash)
	if err != nil {
		return view, &SyncError{Op: "get", PostID: post.ID, ContentHash: post.ContentHash, Err: fmt.Errorf("%w: %w", ErrContentUnavailable, err)}
	}
	body, err := models.DecodePostBody(data)
	if err != nil {
		return view, &SyncError{Op: "get", PostID: post.ID, ContentHash: post.ContentHash, Err: fmt.Errorf("%w: %w", ErrInvalidContent, err)}
	}

	view.Content = body.Content
	view.CoverImage = body.CoverImage
	view.Publisher = body.Publisher
	view.ContentAvailable = true
	if body.CoverImage != "" && s.cfg.GatewayURL != "" {
		view.CoverImageURL = s.cfg.GatewayURL + "/" + body.CoverImage
	}
	return view, nil
}

func (s *PostService) storeBody(ctx context.Context, sg *saga, body *models.PostBody) (string, error) {
	if s.cfg.ValidateBodies {
		if err := body.Validate(); err != nil {
			return "", sg.fail(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
	}
	data, err := models.EncodePostBody(body)
	if err != nil {
		return "", sg.fail(fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}
	hash, err := s.store.Put(ctx, data)
	if err != nil {
		return "", sg.fail(fmt.Errorf("%w: %w", ErrStoreFailed, err))
	}
	sg.stored(hash)
	return hash, nil
}

// commit submits intent and waits for its receipt. Definite rejections trigger
// compensation; a confirmation timeout does not, since the transaction may
// still be mined.
func (s *PostService) commit(ctx context.Context, sg *saga, intent chain.Intent) (*chain.Receipt, error) {
	txHash, err := s.signer.Submit(ctx, intent)
	if err != nil {
		s.compensate(ctx, sg)
		return nil, sg.fail(fmt.Errorf("%w: %w", ErrSubmissionFailed, err))
	}
	sg.txHash = txHash

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	defer cancel()
	receipt, err := s.signer.WaitForConfirmation(waitCtx, txHash)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = ErrConfirmationTimeout
		}
		return nil, sg.fail(fmt.Errorf("%w: %w", ErrSubmissionFailed, err))
	}

	if err := receipt.Err(); err != nil {
		s.compensate(ctx, sg)
		if errors.Is(err, chain.ErrReverted) {
			err = fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
		}
		return nil, sg.fail(err)
	}
	sg.committed(receipt.PostID)
	return receipt, nil
}

// compensate deletes the blob stored by a rejected write if nothing references it.
func (s *PostService) compensate(ctx context.Context, sg *saga) {
	if sg.state != stateStored {
		return
	}
	deleter, ok := s.store.(storage.Deleter)
	if !ok {
		return
	}
	ctx = context.WithoutCancel(ctx)

	if s.referenced(ctx, sg.contentHash) {
		return
	}
	if err := deleter.Delete(ctx, sg.contentHash); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("failed to remove orphaned content",
			zap.String("content_hash", sg.contentHash),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("removed orphaned content", zap.String("content_hash", sg.contentHash))
}

// referenced reports whether any post still carries contentHash. Lookup
// failures count as referenced.
func (s *PostService) referenced(ctx context.Context, contentHash string) bool {
	if _, err := s.registry.GetPost(ctx, contentHash); !errors.Is(err, repositories.ErrNotFound) {
		return true
	}
	posts, err := s.registry.GetPosts(ctx)
	if err != nil {
		return true
	}
	for _, p := range posts {
		if p.ContentHash == contentHash {
			return true
		}
	}
	return false
}
