package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync"

	"subpool/internal/shared/logger"
	"subpool/internal/shared/types"
)

//go:embed all:static
var staticFiles embed.FS

// basicAuthMiddleware 检查 web_user 和 web_password 是否已配置。
// 如果配置了，它将强制执行 HTTP Basic Authentication。
func basicAuthMiddleware(next http.Handler, user, pass string) http.Handler {
	// 如果用户名或密码未设置，则不启用认证，直接返回原始处理器
	if user == "" || pass == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized.\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartServer 启动 Web 服务。web_port 未配置时服务被禁用。
func StartServer(wg *sync.WaitGroup, cfg *types.Config, controller PoolController, hub *Hub) {
	if cfg.WebConf.WebPort <= 0 {
		logger.Info().Msg("Web UI is disabled (web_port is 0 or not set).")
		return
	}

	handler := NewHandler(controller)
	mux := http.NewServeMux()

	webUser := cfg.WebConf.WebUser
	webPassword := cfg.WebConf.WebPassword

	// --- 认证保护的管理 API ---
	mux.Handle("/api/refresh", basicAuthMiddleware(http.HandlerFunc(handler.HandleRefresh), webUser, webPassword))
	mux.Handle("/api/sources", basicAuthMiddleware(http.HandlerFunc(handler.HandleSources), webUser, webPassword))
	mux.Handle("/api/sources/", basicAuthMiddleware(http.HandlerFunc(handler.HandleSourceActions), webUser, webPassword))

	// --- 公开的只读 API ---
	mux.HandleFunc("/api/nodes", handler.HandleNodes)
	mux.HandleFunc("/api/status", handler.HandleStatus)
	mux.HandleFunc("/api/export", handler.HandleExport)

	// --- WebSocket Endpoint (公开，无需认证) ---
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	})

	// --- 静态文件和主页 ---
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create sub filesystem for static assets.")
	}
	fileServer := http.FileServer(http.FS(staticFS))
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))

	rootHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		index, err := staticFiles.ReadFile("static/index.html")
		if err != nil {
			http.Error(w, "Could not load index.html", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(index)
	})
	mux.Handle("/", basicAuthMiddleware(rootHandler, webUser, webPassword))

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.WebConf.WebPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error().Err(err).Str("addr", addr).Msg("Failed to start Web UI.")
		return
	}

	logger.Info().Msgf("Web UI is listening on http://%s", addr)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := http.Serve(listener, mux); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Web server error.")
		}
		logger.Info().Msg("Web server stopped.")
	}()
}
