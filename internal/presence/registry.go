// Package presence tracks which user and caregiver devices are online.
package presence

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	RoleUser      = "user"
	RoleCaregiver = "caregiver"
)

type DeviceState struct {
	DeviceID string    `json:"device_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

type Registry struct {
	mu   sync.RWMutex
	data map[string]DeviceState
	ttl  time.Duration
	now  func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &Registry{
		data: make(map[string]DeviceState),
		ttl:  ttl,
		now:  time.Now,
	}
}

// SetOnline records a device announcement. Empty userID or role keep the
// previously known values.
func (r *Registry) SetOnline(deviceID, userID, role string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.data[deviceID]
	state.DeviceID = deviceID
	if userID != "" {
		state.UserID = userID
	}
	if role = strings.ToLower(strings.TrimSpace(role)); role != "" {
		state.Role = role
	}
	if state.Role == "" {
		state.Role = RoleUser
	}
	state.Online = online
	state.LastSeen = r.now()
	r.data[deviceID] = state
}

// Touch refreshes a known device; heartbeats from unknown devices are ignored.
func (r *Registry) Touch(deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.data[deviceID]
	if !ok {
		return false
	}
	state.Online = true
	state.LastSeen = r.now()
	r.data[deviceID] = state
	return true
}

func (r *Registry) Get(deviceID string) (DeviceState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.data[deviceID]
	if !ok || r.isExpired(state) {
		return DeviceState{}, false
	}
	return state, true
}

// OnlineFor lists online devices bound to userID with the given role,
// ordered by device id.
func (r *Registry) OnlineFor(userID, role string) []DeviceState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []DeviceState
	for _, state := range r.data {
		if state.UserID != userID || state.Role != role {
			continue
		}
		if !state.Online || r.isExpired(state) {
			continue
		}
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

func (r *Registry) ListOnline() []DeviceState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DeviceState, 0, len(r.data))
	for _, state := range r.data {
		if !state.Online || r.isExpired(state) {
			continue
		}
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

func (r *Registry) isExpired(state DeviceState) bool {
	return r.now().Sub(state.LastSeen) > r.ttl
}
