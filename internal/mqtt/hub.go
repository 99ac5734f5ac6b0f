package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"scbackend/internal/domain"
	"scbackend/internal/presence"
)

type HubConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// LocationSink receives device location reports.
type LocationSink interface {
	RecordLocation(ctx context.Context, loc domain.LocationUpdate) (domain.LocationUpdate, error)
}

// SOSAlert is the payload published to caregiver devices.
type SOSAlert struct {
	AlertID   string `json:"alert_id"`
	UserID    string `json:"user_id"`
	Location  string `json:"location"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

type Hub struct {
	cfg      HubConfig
	client   paho.Client
	registry *presence.Registry
	sink     LocationSink
	logger   *slog.Logger
}

func NewHub(cfg HubConfig, registry *presence.Registry, sink LocationSink, logger *slog.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		registry: registry,
		sink:     sink,
		logger:   logger,
	}
}

// SetLocationSink must be called before Start.
func (h *Hub) SetLocationSink(sink LocationSink) {
	h.sink = sink
}

func (h *Hub) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(h.cfg.BrokerURL).
		SetClientID(h.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if h.cfg.Username != "" {
		opts.SetUsername(h.cfg.Username)
		opts.SetPassword(h.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		h.logger.Error("mqtt connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		if err := h.subscribeHandlers(); err != nil {
			h.logger.Error("mqtt subscribe failed", "error", err)
		}
	})

	h.client = paho.NewClient(opts)
	if token := h.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	go func() {
		<-ctx.Done()
		h.client.Disconnect(100)
	}()

	return nil
}

func (h *Hub) subscribeHandlers() error {
	subs := map[string]paho.MessageHandler{
		TopicDeviceOnline(h.cfg.TopicPrefix):    h.handleOnline,
		TopicDeviceHeartbeat(h.cfg.TopicPrefix): h.handleHeartbeat,
		TopicDeviceLocation(h.cfg.TopicPrefix):  h.handleLocation,
	}
	for topic, handler := range subs {
		if token := h.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			return token.Error()
		}
	}
	return nil
}

type onlinePayload struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Online *bool  `json:"online"`
}

func (h *Hub) handleOnline(_ paho.Client, msg paho.Message) {
	deviceID, err := ParseDeviceID(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid online topic", "topic", msg.Topic(), "error", err)
		return
	}

	var p onlinePayload
	online := false
	if err := json.Unmarshal(msg.Payload(), &p); err == nil {
		online = p.Online == nil || *p.Online
	} else {
		// bare payloads such as "1" or "offline"
		payload := strings.TrimSpace(strings.ToLower(string(msg.Payload())))
		online = payload == "1" || payload == "true" || payload == "online"
	}
	h.registry.SetOnline(deviceID, p.UserID, p.Role, online)
	h.logger.Info("device online status", "device_id", deviceID, "user_id", p.UserID, "online", online)
}

func (h *Hub) handleHeartbeat(_ paho.Client, msg paho.Message) {
	deviceID, err := ParseDeviceID(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid heartbeat topic", "topic", msg.Topic(), "error", err)
		return
	}
	if !h.registry.Touch(deviceID) {
		h.logger.Debug("heartbeat from unknown device", "device_id", deviceID)
	}
}

func (h *Hub) handleLocation(_ paho.Client, msg paho.Message) {
	deviceID, err := ParseDeviceID(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid location topic", "topic", msg.Topic(), "error", err)
		return
	}

	var loc domain.LocationUpdate
	if err := json.Unmarshal(msg.Payload(), &loc); err != nil {
		h.logger.Warn("invalid location payload", "device_id", deviceID, "error", err)
		return
	}
	if loc.UserID == "" {
		state, ok := h.registry.Get(deviceID)
		if !ok || state.UserID == "" {
			h.logger.Warn("location from unbound device", "device_id", deviceID)
			return
		}
		loc.UserID = state.UserID
	}
	loc.Source = "device:" + deviceID
	h.registry.Touch(deviceID)

	if h.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := h.sink.RecordLocation(ctx, loc); err != nil {
		h.logger.Warn("record device location failed", "device_id", deviceID, "user_id", loc.UserID, "error", err)
	}
}

// BroadcastSOS publishes the alert to the user's caregiver topic and returns
// how many caregiver devices are currently online to receive it.
func (h *Hub) BroadcastSOS(ctx context.Context, alert SOSAlert) (int, error) {
	if h.client == nil || !h.client.IsConnectionOpen() {
		return 0, fmt.Errorf("mqtt client is not connected")
	}
	body, err := json.Marshal(alert)
	if err != nil {
		return 0, err
	}

	token := h.client.Publish(TopicSOS(h.cfg.TopicPrefix, alert.UserID), 1, false, body)
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return 0, err
	}
	return len(h.registry.OnlineFor(alert.UserID, presence.RoleCaregiver)), nil
}
