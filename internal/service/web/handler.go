package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"subpool/internal/shared/types"
	"subpool/nodepool"
	"subpool/nodepool/model"
)

// PoolController 定义 Web 处理器与节点池管理器交互的接口，
// 以解耦 web 包与 nodepool 包的具体实现。
type PoolController interface {
	GetNodes() []*model.NodeInfo
	Stats() *nodepool.Stats
	TriggerRefresh()
	GetSourceProfiles() []*types.SourceProfile
	AddSourceProfile(p *types.SourceProfile) error
	UpdateSourceProfile(id string, p *types.SourceProfile) error
	DeleteSourceProfile(id string) error
}

type Handler struct {
	controller PoolController
}

func NewHandler(controller PoolController) *Handler {
	return &Handler{controller: controller}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// HandleNodes 处理 GET /api/nodes 请求，返回池快照。
// 空池返回空数组，这不是错误，由前端呈现"暂无节点"。
func (h *Handler) HandleNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	nodes := h.controller.GetNodes()
	if nodes == nil {
		nodes = []*model.NodeInfo{}
	}
	writeJSON(w, map[string]interface{}{"nodes": nodes})
}

// HandleStatus 处理 GET /api/status 请求。
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.controller.Stats())
}

// HandleRefresh 处理 POST /api/refresh 请求，触发一次后台刷新。
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.controller.TriggerRefresh()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "refresh started"})
}

// HandleExport 处理 GET /api/export 请求，把当前节点渲染回一份
// 只含 proxies 小节的 Clash 文档。
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := exportClashDocument(h.controller.GetNodes())
	if err != nil {
		http.Error(w, "Failed to render export document", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	w.Write(data)
}

// HandleSources 处理 /api/sources 的列表与创建。
func (h *Handler) HandleSources(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, map[string]interface{}{"sources": h.controller.GetSourceProfiles()})
	case http.MethodPost:
		var profile types.SourceProfile
		if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		if err := h.controller.AddSourceProfile(&profile); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(&profile)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSourceActions 处理 /api/sources/{id} 的更新与删除。
func (h *Handler) HandleSourceActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/sources/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "Invalid source id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var profile types.SourceProfile
		if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		if err := h.controller.UpdateSourceProfile(id, &profile); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, &profile)
	case http.MethodDelete:
		if err := h.controller.DeleteSourceProfile(id); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
