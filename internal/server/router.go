package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/reviews/internal/reviews"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	messageCreateFailed = "There was an issue adding your review."
	messageUpdateFailed = "There was an issue updating your review."
	messageDeleteFailed = "There was an issue deleting that review."
	healthCheckTimeout  = 2 * time.Second
)

var (
	errMissingReviewsService = errors.New("reviews service dependency required")
	errMissingFormField      = errors.New("form field missing")
)

// ReviewsService is the storage contract the handlers call into.
type ReviewsService interface {
	Create(ctx context.Context, author, text string) (reviews.Review, error)
	List(ctx context.Context) ([]reviews.Review, error)
	Get(ctx context.Context, id int64) (reviews.Review, error)
	Update(ctx context.Context, id int64, author, text string) (reviews.Review, error)
	Delete(ctx context.Context, id int64) error
}

// DatabasePinger reports storage liveness; *sql.DB satisfies it.
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

type Dependencies struct {
	ReviewsService ReviewsService
	Database       DatabasePinger
	AllowedOrigins []string
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.ReviewsService == nil {
		return nil, errMissingReviewsService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.SetHTMLTemplate(templates)
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	if len(deps.AllowedOrigins) > 0 {
		router.Use(corsMiddleware(deps.AllowedOrigins))
	}

	handler := &httpHandler{
		reviewsService: deps.ReviewsService,
		database:       deps.Database,
		logger:         logger,
	}

	router.GET("/", handler.handleListReviews)
	router.POST("/", handler.handleCreateReview)
	router.GET("/update/:id", handler.handleEditReview)
	router.POST("/update/:id", handler.handleUpdateReview)
	router.GET("/delete/:id", handler.handleDeleteReview)
	if deps.Database != nil {
		router.GET("/healthz", handler.handleHealth)
	}
	router.NoRoute(handler.renderNotFound)

	return router, nil
}

type httpHandler struct {
	reviewsService ReviewsService
	database       DatabasePinger
	logger         *zap.Logger
}

type indexPage struct {
	Reviews         []reviews.Review
	MaxAuthorLength int
}

type editPage struct {
	Review          reviews.Review
	MaxAuthorLength int
}

func (h *httpHandler) handleListReviews(c *gin.Context) {
	items, err := h.reviewsService.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list reviews", zap.Error(err))
		c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	c.HTML(http.StatusOK, "index.html", indexPage{
		Reviews:         items,
		MaxAuthorLength: reviews.MaxAuthorLength,
	})
}

func (h *httpHandler) handleCreateReview(c *gin.Context) {
	author, text, err := readReviewForm(c)
	if err != nil {
		h.logger.Warn("review form rejected", zap.Error(err))
		c.String(http.StatusOK, messageCreateFailed)
		return
	}

	review, err := h.reviewsService.Create(c.Request.Context(), author, text)
	if err != nil {
		h.logger.Error("failed to create review", zap.String("code", errorCode(err)), zap.Error(err))
		c.String(http.StatusOK, messageCreateFailed)
		return
	}

	h.logger.Debug("review created", zap.Int64("review_id", review.ID))
	c.Redirect(http.StatusFound, "/")
}

func (h *httpHandler) handleEditReview(c *gin.Context) {
	reviewID, ok := parseReviewID(c.Param("id"))
	if !ok {
		h.renderNotFound(c)
		return
	}

	review, err := h.reviewsService.Get(c.Request.Context(), reviewID)
	if errors.Is(err, reviews.ErrReviewNotFound) {
		h.renderNotFound(c)
		return
	}
	if err != nil {
		h.logger.Error("failed to load review", zap.Int64("review_id", reviewID), zap.Error(err))
		c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	c.HTML(http.StatusOK, "edit.html", editPage{
		Review:          review,
		MaxAuthorLength: reviews.MaxAuthorLength,
	})
}

func (h *httpHandler) handleUpdateReview(c *gin.Context) {
	reviewID, ok := parseReviewID(c.Param("id"))
	if !ok {
		h.renderNotFound(c)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.reviewsService.Get(ctx, reviewID); err != nil {
		if errors.Is(err, reviews.ErrReviewNotFound) {
			h.renderNotFound(c)
			return
		}
		h.logger.Error("failed to update review", zap.Int64("review_id", reviewID), zap.String("code", errorCode(err)), zap.Error(err))
		c.String(http.StatusOK, messageUpdateFailed)
		return
	}

	author, text, err := readReviewForm(c)
	if err != nil {
		h.logger.Warn("review form rejected", zap.Int64("review_id", reviewID), zap.Error(err))
		c.String(http.StatusOK, messageUpdateFailed)
		return
	}

	if _, err := h.reviewsService.Update(ctx, reviewID, author, text); err != nil {
		if errors.Is(err, reviews.ErrReviewNotFound) {
			h.renderNotFound(c)
			return
		}
		h.logger.Error("failed to update review", zap.Int64("review_id", reviewID), zap.String("code", errorCode(err)), zap.Error(err))
		c.String(http.StatusOK, messageUpdateFailed)
		return
	}

	c.Redirect(http.StatusFound, "/")
}

func (h *httpHandler) handleDeleteReview(c *gin.Context) {
	reviewID, ok := parseReviewID(c.Param("id"))
	if !ok {
		h.renderNotFound(c)
		return
	}

	if err := h.reviewsService.Delete(c.Request.Context(), reviewID); err != nil {
		if errors.Is(err, reviews.ErrReviewNotFound) {
			h.renderNotFound(c)
			return
		}
		h.logger.Error("failed to delete review", zap.Int64("review_id", reviewID), zap.String("code", errorCode(err)), zap.Error(err))
		c.String(http.StatusOK, messageDeleteFailed)
		return
	}

	c.Redirect(http.StatusFound, "/")
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.database.PingContext(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.String(http.StatusServiceUnavailable, "ERROR: "+err.Error())
		return
	}
	c.String(http.StatusOK, "OK")
}

func (h *httpHandler) renderNotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "not_found.html", nil)
}

// readReviewForm treats an absent field as a violation of the required
// columns; present-but-empty values are stored as given.
func readReviewForm(c *gin.Context) (string, string, error) {
	author, hasAuthor := c.GetPostForm("author")
	if !hasAuthor {
		return "", "", fmt.Errorf("%w: author", errMissingFormField)
	}
	text, hasText := c.GetPostForm("text")
	if !hasText {
		return "", "", fmt.Errorf("%w: text", errMissingFormField)
	}
	return author, text, nil
}

// parseReviewID accepts unsigned decimal digits only.
func parseReviewID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	for _, character := range raw {
		if character < '0' || character > '9' {
			return 0, false
		}
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func errorCode(err error) string {
	var serviceErr *reviews.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return "unknown"
}
