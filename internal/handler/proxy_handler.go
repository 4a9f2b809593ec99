package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"readiness-sync/internal/domain"
	"readiness-sync/pkg/response"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type ProxyExecutor interface {
	Handle(ctx context.Context, req *domain.Request) *domain.Response
}

// ProxyHandler serves GET /exec. With a callback parameter the response is a
// script invoking that callback; without one the request is a beacon and
// gets an empty 204.
type ProxyHandler struct {
	service  ProxyExecutor
	validate *validator.Validate
	logger   *zap.Logger
}

func NewProxyHandler(service ProxyExecutor, logger *zap.Logger) *ProxyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProxyHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *ProxyHandler) Exec(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	callback := q.Get("callback")
	if callback != "" && !response.ValidCallback(callback) {
		response.BadRequest(w, "Invalid callback name")
		return
	}

	reply := func(resp *domain.Response) {
		if callback == "" {
			response.Beacon(w)
			return
		}
		response.Callback(w, callback, resp)
	}

	var req domain.Request
	if err := json.Unmarshal([]byte(q.Get("data")), &req); err != nil {
		reply(&domain.Response{Success: false, Error: "Invalid request payload"})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		reply(&domain.Response{Success: false, Error: err.Error()})
		return
	}

	if req.Action.Mutating() && req.Assessment == nil {
		reply(&domain.Response{Success: false, Error: "Missing assessment"})
		return
	}

	resp := h.service.Handle(r.Context(), &req)
	if !resp.Success {
		h.logger.Info("proxy action failed",
			zap.String("action", string(req.Action)),
			zap.String("error", resp.Error),
			zap.Bool("beacon", callback == ""),
		)
	}
	reply(resp)
}

func (h *ProxyHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "readiness-sync",
	})
}
