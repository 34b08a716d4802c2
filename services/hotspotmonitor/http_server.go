package hotspotmonitor

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type HTTPServer struct {
	server *http.Server
	router *mux.Router
}

func NewHTTPServer(addr string) *HTTPServer {
	router := mux.NewRouter()

	srv := &http.Server{
		Addr:         addr,
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      router,
	}

	return &HTTPServer{
		server: srv,
		router: router,
	}
}

// Handler — корневой обработчик (для httptest).
func (hs *HTTPServer) Handler() http.Handler {
	return hs.router
}

func (hs *HTTPServer) Start() {
	go func() {
		log.Printf("HTTP server starting on %s", hs.server.Addr)
		if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()
}

func (hs *HTTPServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := hs.server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")
}

func (hs *HTTPServer) RegisterRoutes(service *Service, wsServer *WebSocketServer) {
	// WebSocket: поток отчётов анализа
	hs.router.HandleFunc("/ws/reports", wsServer.HandleWebSocket)

	ingest := http.Handler(http.HandlerFunc(service.PostEliminationHandler))
	if service.auth != nil {
		ingest = service.auth.Middleware(ingest)
	}
	hs.router.Handle("/v1/eliminations", ingest).Methods("POST")

	hs.router.HandleFunc("/v1/hotspots", service.GetHotspotsHandler).Methods("GET")
	hs.router.HandleFunc("/v1/camping", service.GetCampingHandler).Methods("GET")
	hs.router.HandleFunc("/v1/camping/history", service.GetCampingHistoryHandler).Methods("GET")
	hs.router.HandleFunc("/v1/campers", service.GetTopCampersHandler).Methods("GET")
	hs.router.HandleFunc("/v1/heatmap", service.GetHeatmapHandler).Methods("GET")
	hs.router.HandleFunc("/v1/events/recent", service.GetRecentEventsHandler).Methods("GET")
	hs.router.HandleFunc("/v1/analysis/run", service.RunAnalysisHandler).Methods("POST")
	hs.router.HandleFunc("/v1/status", service.StatusHandler).Methods("GET")
	hs.router.HandleFunc("/healthz", service.HealthHandler).Methods("GET")
}
