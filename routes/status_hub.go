package routes

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/packlabs/mentor_analytics/pipeline/models"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// statusClient — одно WebSocket-подключение подписчика статусов
type statusClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StatusHub рассылает статусные события конвейера всем подключенным
// подписчикам. Реализует pipeline.StatusNotifier.
type StatusHub struct {
	logger     *utils.PipelineLogger
	broadcast  chan []byte
	register   chan *statusClient
	unregister chan *statusClient
	clients    map[*statusClient]bool
}

// NewStatusHub создает новый экземпляр StatusHub
func NewStatusHub(logger *utils.PipelineLogger) *StatusHub {
	return &StatusHub{
		logger:     logger,
		broadcast:  make(chan []byte, 64),
		register:   make(chan *statusClient),
		unregister: make(chan *statusClient),
		clients:    make(map[*statusClient]bool),
	}
}

// Notify сериализует статусное событие и ставит его в очередь рассылки.
// Не блокирует конвейер: при переполненной очереди событие отбрасывается.
func (h *StatusHub) Notify(update models.StatusUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		h.logger.Error("Не удалось сериализовать статусное событие: %v", err)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Очередь статусных событий переполнена — событие отброшено")
	}
}

// Run запускает цикл рассылки хаба
func (h *StatusHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("Подписчик статусов подключился (всего: %d)", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("Подписчик статусов отключился (всего: %d)", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Медленный подписчик выселяется, чтобы не копить буфер
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// HandleConnections обрабатывает подключение нового WebSocket-подписчика
func (h *StatusHub) HandleConnections(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Ошибка при установке WebSocket-соединения: %v", err)
		return
	}

	client := &statusClient{
		conn: conn,
		send: make(chan []byte, 16),
	}
	h.register <- client

	go h.writePump(client)
	go h.readPump(client)
}

// writePump пишет события из очереди клиента в соединение
func (h *StatusHub) writePump(client *statusClient) {
	defer client.conn.Close()

	for message := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	// Канал закрыт хабом — прощаемся корректно
	client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump дочитывает входящие фреймы до разрыва соединения.
// Подписчики ничего не присылают, но без читающей горутины не
// обрабатываются close- и ping-фреймы.
func (h *StatusHub) readPump(client *statusClient) {
	defer func() {
		h.unregister <- client
		client.conn.Close()
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
