package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/prescription"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/auth"
)

func recv(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.Send:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("expected no event, got %s", msg)
	default:
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient(TopicDoctors, "user:abc")

	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.TopicCount(TopicDoctors) != 1 || hub.TopicCount("user:abc") != 1 {
		t.Fatal("expected client on both topics")
	}

	hub.Unregister(c)
	hub.Unregister(c)
	if hub.ClientCount() != 0 || hub.TopicCount(TopicDoctors) != 0 {
		t.Fatal("expected hub to be empty")
	}
	if _, ok := <-c.Send; ok {
		t.Error("expected Send to be closed")
	}
}

func TestHub_PrescriptionChanged_Routing(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	owner := uuid.New()
	other := uuid.New()

	doctor := NewClient(UserTopic(uuid.New()), TopicDoctors)
	patient := NewClient(UserTopic(owner))
	stranger := NewClient(UserTopic(other))
	for _, c := range []*Client{doctor, patient, stranger} {
		hub.Register(c)
	}

	change := prescription.Change{
		PrescriptionID: uuid.New(),
		UserID:         owner,
		Status:         prescription.StatusApproved,
		At:             time.Now().UTC(),
	}
	hub.PrescriptionChanged(context.Background(), change)

	for name, c := range map[string]*Client{"doctor": doctor, "patient": patient} {
		ev := recv(t, c)
		if ev.Type != "prescription.approved" || ev.PrescriptionID != change.PrescriptionID || ev.Status != prescription.StatusApproved {
			t.Errorf("%s got unexpected event %+v", name, ev)
		}
	}
	expectNothing(t, stranger)
}

func TestHub_DoctorOwningPrescriptionGetsOneCopy(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	id := uuid.New()
	c := NewClient(UserTopic(id), TopicDoctors)
	hub.Register(c)

	hub.PrescriptionChanged(context.Background(), prescription.Change{
		PrescriptionID: uuid.New(),
		UserID:         id,
		Status:         prescription.StatusPending,
	})

	if ev := recv(t, c); ev.Type != "prescription.created" {
		t.Errorf("expected prescription.created, got %s", ev.Type)
	}
	expectNothing(t, c)
}

func TestHub_FullBufferDropsEvent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := &Client{ID: "slow", Topics: []string{TopicDoctors}, Send: make(chan []byte, 1)}
	hub.Register(c)

	change := prescription.Change{PrescriptionID: uuid.New(), UserID: uuid.New(), Status: prescription.StatusRejected}
	hub.PrescriptionChanged(context.Background(), change)
	hub.PrescriptionChanged(context.Background(), change)

	if ev := recv(t, c); ev.Type != "prescription.rejected" {
		t.Errorf("expected prescription.rejected, got %s", ev.Type)
	}
	expectNothing(t, c)
}

func TestEvent_CarriesNoTreatmentContent(t *testing.T) {
	data, err := json.Marshal(Event{Type: "prescription.created", PrescriptionID: uuid.New(), Status: "pending"})
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"medications", "lifestyle_recommendations", "reasoning", "follow_up_instructions"} {
		if _, ok := fields[k]; ok {
			t.Errorf("event must not carry %s", k)
		}
	}
}

func newTestServer(t *testing.T, hub *Hub, userID uuid.UUID, roles ...string) *httptest.Server {
	t.Helper()
	e := echo.New()
	api := e.Group("/api", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), userID.String(), roles...)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(hub, nil, zerolog.Nop()).RegisterRoutes(api)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandler_PatientReceivesOwnChanges(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	patientID := uuid.New()
	srv := newTestServer(t, hub, patientID, auth.RolePatient)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	waitFor(t, func() bool { return hub.TopicCount(UserTopic(patientID)) == 1 })
	if hub.TopicCount(TopicDoctors) != 0 {
		t.Fatal("patient must not join the doctors topic")
	}

	rxID := uuid.New()
	hub.PrescriptionChanged(context.Background(), prescription.Change{
		PrescriptionID: rxID,
		UserID:         patientID,
		Status:         prescription.StatusApproved,
		At:             time.Now().UTC(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.PrescriptionID != rxID || ev.Type != "prescription.approved" {
		t.Errorf("unexpected event %+v", ev)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestHandler_DoctorJoinsQueueTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := newTestServer(t, hub, uuid.New(), auth.RoleDoctor)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.TopicCount(TopicDoctors) == 1 })
}

func TestHandler_RequiresRole(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := newTestServer(t, hub, uuid.New())

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	_, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail without a role")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := newTestServer(t, hub, uuid.New(), auth.RolePatient)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected foreign origin to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}
