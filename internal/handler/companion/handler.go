package companion

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aisuru/companion/backend/internal/model/companion"
	"github.com/aisuru/companion/backend/pkg/utils"
)

// Handler 角色目录的HTTP处理器
type Handler struct {
	companions companion.Store
}

// New 创建角色目录处理器
func New(companions companion.Store) *Handler {
	return &Handler{companions: companions}
}

// RegisterRoutes 注册角色相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/companions", h.handleList)
	r.Get("/companions/{companionID}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.companions.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	c, ok := h.companions.FindByID(chi.URLParam(r, "companionID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "companion not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, c)
}
