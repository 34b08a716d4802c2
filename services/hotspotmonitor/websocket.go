package hotspotmonitor

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Дашборды открываются с любого источника
		return true
	},
}

type WebSocketServer struct {
	clients map[*websocket.Conn]bool
	mutex   sync.Mutex // Мьютекс для синхронизации доступа к clients

	// greeting — первое сообщение новому клиенту (последний отчёт); может быть nil.
	greeting func() []byte
}

func NewWebSocketServer() *WebSocketServer {
	return &WebSocketServer{
		clients: make(map[*websocket.Conn]bool),
	}
}

func (w *WebSocketServer) HandleWebSocket(wr http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(wr, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	w.mutex.Lock()
	if w.greeting != nil {
		if msg := w.greeting(); msg != nil {
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				w.mutex.Unlock()
				log.Printf("Failed to greet client: %v", err)
				return
			}
		}
	}
	w.clients[conn] = true
	w.mutex.Unlock()

	// Клиенты только слушают; чтение нужно, чтобы заметить отключение
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Printf("Client disconnected: %v", err)
			w.mutex.Lock()
			delete(w.clients, conn)
			w.mutex.Unlock()
			return
		}
	}
}

func (w *WebSocketServer) BroadcastMessage(message []byte) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	for client := range w.clients {
		client.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Failed to send message to client: %v", err)
			client.Close()
			delete(w.clients, client)
		}
	}
}

func (w *WebSocketServer) BroadcastLoop(broadcast <-chan []byte) {
	for message := range broadcast {
		w.BroadcastMessage(message)
	}
}

// ClientCount — число подключённых дашбордов.
func (w *WebSocketServer) ClientCount() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return len(w.clients)
}

// CloseAll закрывает все соединения.
func (w *WebSocketServer) CloseAll() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	for client := range w.clients {
		client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		client.Close()
		delete(w.clients, client)
	}
}
