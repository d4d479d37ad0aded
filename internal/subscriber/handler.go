package subscriber

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/response"
	"github.com/ovaphlow/pitchfork/service-identity/internal/subscriber/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/validation"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) DeviceTokens(w http.ResponseWriter, r *http.Request) {
	var in entity.DeviceTokensRequest
	if err := validation.Decode(r, &in); err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	out, err := h.svc.DeviceTokens(r.Context(), in.UserUIDs)
	if err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	response.Success(w, r, http.StatusOK, out)
}

func (h *Handler) NewPoll(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.NewPollSubscribers(r.Context())
	if err != nil {
		response.Err(w, r, h.logger, err)
		return
	}
	response.Success(w, r, http.StatusOK, out)
}
