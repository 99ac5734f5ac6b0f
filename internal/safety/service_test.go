package safety

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scbackend/internal/coreapi"
	"scbackend/internal/db"
	"scbackend/internal/domain"
	"scbackend/internal/mqtt"
)

type memStore struct {
	logs      []db.SOSLog
	locations map[string]domain.LocationUpdate
}

func newMemStore() *memStore {
	return &memStore{locations: map[string]domain.LocationUpdate{}}
}

func (m *memStore) InsertSOSLog(_ context.Context, l db.SOSLog) error {
	m.logs = append(m.logs, l)
	return nil
}

func (m *memStore) UpsertLocation(_ context.Context, loc domain.LocationUpdate) (domain.LocationUpdate, error) {
	m.locations[loc.UserID] = loc
	return loc, nil
}

func (m *memStore) GetLocation(_ context.Context, userID string) (domain.LocationUpdate, error) {
	loc, ok := m.locations[userID]
	if !ok {
		return domain.LocationUpdate{}, db.ErrLocationNotFound
	}
	return loc, nil
}

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

type fakeBroadcaster struct {
	alerts []mqtt.SOSAlert
	online int
	err    error
}

func (f *fakeBroadcaster) BroadcastSOS(_ context.Context, a mqtt.SOSAlert) (int, error) {
	f.alerts = append(f.alerts, a)
	return f.online, f.err
}

type fakeGeocoder struct{ addr string }

func (f fakeGeocoder) Reverse(context.Context, float64, float64) (string, error) {
	if f.addr == "" {
		return "", errors.New("no address")
	}
	return f.addr, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestTriggerSOSSendsSMS(t *testing.T) {
	store := newMemStore()
	client := &fakeSNS{}
	bc := &fakeBroadcaster{online: 2}
	svc := NewService(Config{EmergencyNumber: "+6500000000"}, store, NewSNSSenderWithClient(client, "SCAlert"), bc, nil, discard())

	res, err := svc.TriggerSOS(context.Background(), domain.SOSRequest{UserID: "u1", Location: "Blk 123 Ang Mo Kio"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.CallSuccessful)
	assert.Equal(t, "msg-1", res.CallSID)
	assert.True(t, res.CaregiversNotified)

	require.NotNil(t, client.input)
	assert.Equal(t, "+6500000000", aws.ToString(client.input.PhoneNumber))
	assert.Equal(t, "Emergency SOS Alert. Address: Blk 123 Ang Mo Kio.", aws.ToString(client.input.Message))
	assert.Equal(t, "SCAlert", aws.ToString(client.input.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))

	require.Len(t, bc.alerts, 1)
	assert.Equal(t, "u1", bc.alerts[0].UserID)
	require.Len(t, store.logs, 1)
	assert.Equal(t, "msg-1", store.logs[0].CallSID)
}

func TestTriggerSOSWithoutTelephony(t *testing.T) {
	store := newMemStore()
	svc := NewService(Config{}, store, nil, nil, nil, discard())

	res, err := svc.TriggerSOS(context.Background(), domain.SOSRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.CallSuccessful)
	assert.Contains(t, res.Message, "call not configured")
	assert.Equal(t, "Current location", res.Address)
	assert.Len(t, store.logs, 1)
}

func TestTriggerSOSDeliveryFailure(t *testing.T) {
	svc := NewService(Config{EmergencyNumber: "+65"}, newMemStore(), NewSNSSenderWithClient(&fakeSNS{err: errors.New("throttled")}, ""),
		&fakeBroadcaster{err: errors.New("not connected")}, nil, discard())

	res, err := svc.TriggerSOS(context.Background(), domain.SOSRequest{UserID: "u1", Location: "home"})
	require.NoError(t, err)
	assert.False(t, res.CallSuccessful)
	assert.False(t, res.CaregiversNotified)
	assert.Contains(t, res.CallStatus, "throttled")
}

func TestTriggerSOSAddressResolution(t *testing.T) {
	store := newMemStore()
	store.locations["u1"] = domain.LocationUpdate{UserID: "u1", Address: "Toa Payoh Hub"}
	lat, lng := 1.33, 103.78

	svc := NewService(Config{}, store, nil, nil, fakeGeocoder{addr: "Holland Road, Bukit Timah"}, discard())
	res, err := svc.TriggerSOS(context.Background(), domain.SOSRequest{UserID: "u1", Latitude: &lat, Longitude: &lng})
	require.NoError(t, err)
	assert.Equal(t, "Holland Road, Bukit Timah", res.Address)

	svc = NewService(Config{}, store, nil, nil, fakeGeocoder{}, discard())
	res, err = svc.TriggerSOS(context.Background(), domain.SOSRequest{UserID: "u1", Latitude: &lat, Longitude: &lng})
	require.NoError(t, err)
	assert.Equal(t, "Toa Payoh Hub", res.Address)
}

func TestTriggerSOSRequiresUser(t *testing.T) {
	svc := NewService(Config{}, newMemStore(), nil, nil, nil, discard())
	_, err := svc.TriggerSOS(context.Background(), domain.SOSRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRecordLocation(t *testing.T) {
	store := newMemStore()
	svc := NewService(Config{}, store, nil, nil, fakeGeocoder{addr: "Punggol"}, discard())
	lat, lng := 1.40, 103.90

	loc, err := svc.RecordLocation(context.Background(), domain.LocationUpdate{UserID: "u1", Latitude: &lat, Longitude: &lng})
	require.NoError(t, err)
	assert.Equal(t, "Punggol", loc.Address)
	assert.Equal(t, "api", loc.Source)

	got, err := svc.GetLocation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Punggol", got.Address)

	_, err = svc.RecordLocation(context.Background(), domain.LocationUpdate{UserID: "u1"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAlertMessage(t *testing.T) {
	assert.Equal(t, "Emergency SOS Alert. Address: home.", AlertMessage("home", " "))
	assert.Equal(t, "Emergency SOS Alert. Address: home. Message: fell down", AlertMessage("home", "fell down"))
}

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/safety/sos":
			_, _ = w.Write([]byte(`{"success":true,"call_successful":true,"message":"SOS alert sent successfully"}`))
		case "/api/safety/location":
			_, _ = w.Write([]byte(`{"success":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(coreapi.NewClient(srv.URL+"/api", time.Second))
	res, err := c.TriggerSOS(context.Background(), "u1", "home", "help")
	require.NoError(t, err)
	assert.True(t, res.CallSuccessful)
	require.NoError(t, c.UpdateLocation(context.Background(), "u1", "home"))
}
