package studio

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnectionManager WebSocket连接管理器，同一会话可有多个连接
type ConnectionManager struct {
	connections map[string]map[*websocket.Conn]struct{}
	mu          sync.RWMutex
}

// NewConnectionManager 创建连接管理器
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// AddConnection 添加连接
func (cm *ConnectionManager) AddConnection(sessionID string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.connections[sessionID] == nil {
		cm.connections[sessionID] = make(map[*websocket.Conn]struct{})
	}
	cm.connections[sessionID][conn] = struct{}{}
}

// RemoveConnection 移除并关闭单个连接
func (cm *ConnectionManager) RemoveConnection(sessionID string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	set, exists := cm.connections[sessionID]
	if !exists {
		return
	}
	if _, ok := set[conn]; ok {
		conn.Close()
		delete(set, conn)
	}
	if len(set) == 0 {
		delete(cm.connections, sessionID)
	}
}

// RemoveSession 关闭会话的全部连接
func (cm *ConnectionManager) RemoveSession(sessionID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for conn := range cm.connections[sessionID] {
		closeConn(conn, "session closed")
	}
	delete(cm.connections, sessionID)
}

// Count 当前连接总数
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	total := 0
	for _, set := range cm.connections {
		total += len(set)
	}
	return total
}

// CloseAll 关闭所有连接
func (cm *ConnectionManager) CloseAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for sessionID, set := range cm.connections {
		for conn := range set {
			closeConn(conn, "server shutting down")
		}
		delete(cm.connections, sessionID)
	}
}

func closeConn(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()
}
