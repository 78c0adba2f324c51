package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/pkg/logger"
	"realtime_messaging_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
)

// wsWriter the part of *websocket.Conn a client writes to
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
}

// MessagingWebsocketHandler bridges one websocket connection to one Service
type MessagingWebsocketHandler struct {
	newService   func() *Service
	pingInterval time.Duration
}

// NewMessagingWebsocketHandler create MessagingWebsocketHandler; newService is called once per connection
func NewMessagingWebsocketHandler(newService func() *Service, pingInterval time.Duration) *MessagingWebsocketHandler {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &MessagingWebsocketHandler{newService: newService, pingInterval: pingInterval}
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *MessagingWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	userID, ok := conn.Locals(middlewares.TokenUserID).(string)
	if !ok || userID == "" {
		logger.Log.Warn("websocket without user")
		closeWebSocketConnection(conn, websocket.ClosePolicyViolation, "missing user")
		return
	}
	logger.Log.Info("websocket open", zap.String("user_id", userID), zap.String("remote", conn.RemoteAddr().String()))

	client := newWSClient(userID, h.newService(), conn)
	ctxClose, cancel := context.WithCancel(ctx)
	ticker := time.NewTicker(h.pingInterval)

	defer func() {
		ticker.Stop()
		cancel()
		client.close(context.Background())
		conn.Close()
		logger.Log.Info("websocket close", zap.String("user_id", userID))
	}()

	//client發出close, fiber會在read回傳err, 這裡只記錄
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Debug("websocket close frame", zap.Int("code", code), zap.String("text", text))
		return nil
	})
	conn.SetPongHandler(func(string) error {
		logger.Log.Debug("pong", zap.String("user_id", userID))
		return nil
	})

	if err := client.open(ctxClose); err != nil {
		client.sendError("initialize", err)
		return
	}

	// 定期發送 Ping
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := client.write(websocket.PingMessage, []byte("ping")); err != nil {
					logger.Log.Warn("ping failed", zap.String("user_id", userID), zap.Error(err))
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Debug("websocket closed by client", zap.String("user_id", userID))
			} else {
				//直接斷線 1006
				logger.Log.Warn("websocket read error", zap.String("user_id", userID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			client.sendError("unknown", errors.New("only text frames are accepted"))
			continue
		}

		var req domain.WSRequest
		if err := json.Unmarshal(message, &req); err != nil {
			client.sendError("unknown", err)
			continue
		}
		client.send(client.execute(ctxClose, req))
	}
}

// wsClient state of one connection; writes are serialized because handlers run on transport goroutines
type wsClient struct {
	userID string
	svc    *Service
	conn   wsWriter
	mu     sync.Mutex
}

func newWSClient(userID string, svc *Service, conn wsWriter) *wsClient {
	return &wsClient{userID: userID, svc: svc, conn: conn}
}

// open route service callbacks to the socket and start the session
func (c *wsClient) open(ctx context.Context) error {
	c.svc.OnStateChange(func(state ConnectionState) {
		c.push(domain.EventConnectionState, map[string]interface{}{"state": state.String()})
	})
	c.svc.OnUserStatus(func(st domain.PresenceStatus) {
		c.push(domain.EventUserStatus, map[string]interface{}{"status": st})
	})
	c.svc.OnNotification(func(n domain.Notification) {
		c.push(domain.EventNotification, map[string]interface{}{"notification": n})
	})
	return c.svc.Initialize(ctx, c.userID)
}

func (c *wsClient) close(ctx context.Context) {
	c.svc.Disconnect(ctx)
}

// execute run one request; the response always carries the request action
func (c *wsClient) execute(ctx context.Context, req domain.WSRequest) domain.WSResponse {
	resp := domain.WSResponse{Action: req.Action, Payload: map[string]interface{}{}}

	var err error
	switch domain.Action(req.Action) {
	case domain.SendMessage:
		var msg *domain.Message
		msg, err = c.svc.SendMessage(ctx, c.userID, req.Content, req.ReceiverID, req.GroupID, req.Type)
		if err == nil {
			resp.Payload["message"] = msg
		}

	//開始接收某個對話
	case domain.Subscribe:
		var target domain.ConversationTarget
		if target, err = req.Target(); err == nil {
			c.subscribe(target.ID)
			resp.Payload["conversation_id"] = target.ID
		}

	case domain.Unsubscribe:
		var target domain.ConversationTarget
		if target, err = req.Target(); err == nil {
			c.svc.OffMessage(target.ID)
			c.svc.OffTyping(target.ID)
			resp.Payload["conversation_id"] = target.ID
		}

	case domain.Typing:
		var target domain.ConversationTarget
		if target, err = req.Target(); err == nil {
			err = c.svc.SendTyping(ctx, target, req.IsTyping)
		}

	case domain.UpdateStatus:
		err = c.svc.UpdateStatus(ctx, c.userID, req.Status)

	case domain.GetStatus:
		var st *domain.PresenceStatus
		if st, err = c.svc.UserStatus(ctx, req.UserID); err == nil {
			resp.Payload["status"] = st
		}

	case domain.MarkDelivered:
		err = c.svc.MarkDelivered(ctx, req.MessageID)

	case domain.MarkRead:
		err = c.svc.MarkRead(ctx, req.MessageID)

	case domain.History:
		var target domain.ConversationTarget
		if target, err = req.Target(); err == nil {
			var before time.Time
			if req.Before > 0 {
				before = time.Unix(req.Before, 0).UTC()
			}
			var msgs []domain.Message
			if msgs, err = c.svc.History(ctx, target, before, req.Limit); err == nil {
				resp.Payload["messages"] = msgs
			}
		}

	//畫面上的對話, 不推播; 兩個 id 都空代表離開
	case domain.SetActive:
		active := ""
		if target, terr := req.Target(); terr == nil {
			active = target.ID
		}
		c.svc.SetActiveConversation(active)
		resp.Payload["conversation_id"] = active

	case domain.ListNotifications:
		var list []domain.Notification
		if list, err = c.svc.Notifications(ctx, req.UnreadOnly, req.Limit); err == nil {
			resp.Payload["notifications"] = list
		}

	case domain.ReadNotification:
		err = c.svc.MarkNotificationRead(ctx, req.NotificationID)

	case domain.CreateGroup:
		var g *domain.Group
		if g, err = c.svc.CreateGroup(ctx, req.GroupName, req.Members); err == nil {
			resp.Payload["group"] = g
		}

	case domain.AddMember:
		err = c.svc.AddGroupMember(ctx, req.GroupID, req.UserID)

	case domain.RemoveMember:
		err = c.svc.RemoveGroupMember(ctx, req.GroupID, req.UserID)

	case domain.SetRole:
		err = c.svc.SetGroupRole(ctx, req.GroupID, req.UserID, req.Role)

	case domain.LeaveGroup:
		err = c.svc.LeaveGroup(ctx, req.GroupID)

	case domain.GroupMembers:
		var members []domain.GroupMember
		if members, err = c.svc.GroupMembers(ctx, req.GroupID); err == nil {
			resp.Payload["members"] = members
		}

	case domain.RegisterDevice:
		err = c.svc.RegisterDevice(ctx, req.Token, req.Platform)

	case domain.AttachmentURL:
		var url string
		if url, err = c.svc.AttachmentURL(ctx, req.Key); err == nil {
			resp.Payload["url"] = url
		}

	default:
		err = errors.New("unknown action")
	}

	if err != nil {
		resp.Error = err.Error()
		logger.Log.Warn("websocket action failed", zap.String("user_id", c.userID), zap.String("action", req.Action), zap.Error(err))
		return resp
	}
	resp.Success = true
	return resp
}

// subscribe forward message and typing events of a conversation; a second subscribe replaces the first
func (c *wsClient) subscribe(conversationID string) {
	c.svc.OnMessage(conversationID, func(ev domain.MessageEvent) {
		c.push(domain.EventMessage, map[string]interface{}{"event": ev})
	})
	c.svc.OnTyping(conversationID, func(ind domain.TypingIndicator) {
		c.push(domain.EventTyping, map[string]interface{}{"typing": ind})
	})
}

func (c *wsClient) push(action domain.Action, payload map[string]interface{}) {
	c.send(domain.WSResponse{Action: string(action), Success: true, Payload: payload})
}

func (c *wsClient) sendError(action string, err error) {
	c.send(domain.WSResponse{Action: action, Success: false, Error: err.Error()})
}

// send - 發送 JSON 給前端
func (c *wsClient) send(resp domain.WSResponse) {
	b, err := resp.Encode()
	if err != nil {
		logger.Log.Errorf("encode websocket response", err, zap.String("action", resp.Action))
		return
	}
	if err := c.write(websocket.TextMessage, b); err != nil {
		logger.Log.Warn("write message error", zap.String("user_id", c.userID), zap.Error(err))
	}
}

func (c *wsClient) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func closeWebSocketConnection(conn *websocket.Conn, code int, reason string) {
	if err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason)); err != nil {
		logger.Log.Warn("send close message", zap.Error(err))
	}
	conn.Close()
}
