package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 1 << 20

var errMissingUser = errors.New("missing " + UserHeader + " header")

type createUserRequest struct {
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
}

type createPostRequest struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Media []domain.Media `json:"media"`
	Tags  []string       `json:"tags"`
}

type createCommentRequest struct {
	Content string `json:"content"`
	ReplyTo string `json:"replyTo"`
}

type tipRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type tipResponse struct {
	Tip  domain.Tip   `json:"tip"`
	Post *domain.Post `json:"post"`
}

// === Users ===

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.Service.CreateUser(r.Context(), req.Username, req.Balance)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	users, err := h.Service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// === Posts ===

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req createPostRequest
	if !h.decode(w, r, &req) {
		return
	}
	post, err := h.Service.CreatePost(r.Context(), actor, domain.PostDraft{
		Title: req.Title,
		Body:  req.Body,
		Media: req.Media,
		Tags:  req.Tags,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	posts, err := h.Service.ListPosts(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	for _, p := range posts {
		hydrateNames(r.Context(), p)
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *Handler) randomPosts(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	posts, err := h.Service.RandomPosts(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	for _, p := range posts {
		hydrateNames(r.Context(), p)
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeletePost(r.Context(), chi.URLParam(r, "postID"), actor); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.Service.GetPost(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	hydrateNames(r.Context(), post)
	writeJSON(w, http.StatusOK, post)
}

// === Comments ===

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req createCommentRequest
	if !h.decode(w, r, &req) {
		return
	}
	post, err := h.Service.CreateComment(r.Context(), chi.URLParam(r, "postID"), actor, req.Content, req.ReplyTo)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// === Tips ===

func (h *Handler) tipPost(w http.ResponseWriter, r *http.Request) {
	h.tip(w, r, "")
}

func (h *Handler) tipComment(w http.ResponseWriter, r *http.Request) {
	h.tip(w, r, chi.URLParam(r, "targetID"))
}

func (h *Handler) tip(w http.ResponseWriter, r *http.Request, targetID string) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req tipRequest
	if !h.decode(w, r, &req) {
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	post, tip, err := h.Service.TipTarget(r.Context(), chi.URLParam(r, "postID"), targetID, actor, req.Amount, currency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tipResponse{Tip: tip, Post: post})
}

// === Helpers ===

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := session.UserID(r.Context())
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errMissingUser.Error()})
		return "", false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *Handler) paging(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	if limit, ok = queryInt(w, r, "limit"); !ok {
		return 0, 0, false
	}
	if offset, ok = queryInt(w, r, "offset"); !ok {
		return 0, 0, false
	}
	return limit, offset, true
}

// queryInt читает необязательный целый параметр запроса. Отсутствие дает 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid " + name + " parameter"})
		return 0, false
	}
	return n, true
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor сопоставляет класс ошибки с кодом ответа.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger().ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
