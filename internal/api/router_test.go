package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/api"
	"github.com/servio/backend/internal/api/middleware"
	"github.com/servio/backend/internal/auth"
	"github.com/servio/backend/internal/booking"
	"github.com/servio/backend/internal/identity"
	"github.com/servio/backend/internal/notification"
	"github.com/servio/backend/internal/storage/models"
	"github.com/servio/backend/internal/storage/storagetest"
	"github.com/servio/backend/internal/websocket"
)

type testServer struct {
	*httptest.Server
	staffToken    string
	customerToken string
	customerID    int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := storagetest.NewDB(t)
	logger := zerolog.Nop()

	hub := websocket.NewHub(logger)
	events := websocket.NewEventBroadcaster(hub, logger)
	resolver := identity.NewResolver(db, logger)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)

	router := api.NewRouter(api.Deps{
		DB:            db,
		Hub:           hub,
		Bookings:      booking.NewService(db, resolver, events, time.UTC, logger),
		Notifications: notification.NewService(db, events, logger),
		Auth:          auth.NewAuthenticator(tokens, nil, resolver, logger),
		Logger:        logger,
		Version:       "test",
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	staff := storagetest.CreateAccount(t, db, "Sam Staff", models.RoleStaff)
	customer := storagetest.CreateAccount(t, db, "Casey Customer", models.RoleUser)

	issue := func(a *models.Account) string {
		tok, err := tokens.Issue(strconv.FormatInt(a.ID, 10), a.Role)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		return tok
	}

	return &testServer{
		Server:        srv,
		staffToken:    issue(staff),
		customerToken: issue(customer),
		customerID:    customer.ID,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]json.RawMessage
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (s *testServer) book(t *testing.T, token, date string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/appointments", token, map[string]any{
		"service_type":     "Oil Change",
		"appointment_date": date,
		"estimated_cost":   "49.99",
	})
}

func TestCreateAppointmentAndSlotConflict(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.book(t, s.customerToken, "2025-06-02T10:00:00Z")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", resp.StatusCode, body["message"])
	}
	var appt models.Appointment
	if err := json.Unmarshal(body["data"], &appt); err != nil {
		t.Fatalf("decode appointment: %v", err)
	}
	if appt.Status != models.StatusPending || appt.Owner != models.LocalOwner(s.customerID) {
		t.Fatalf("appointment = %+v", appt)
	}

	resp, body = s.book(t, s.staffToken, "2025-06-02T10:00:00Z")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second booking status = %d", resp.StatusCode)
	}
	if string(body["error"]) != `"`+middleware.ErrConflict+`"` {
		t.Fatalf("error code = %s", body["error"])
	}

	resp, body = s.do(t, http.MethodGet, "/api/appointments/booked-slots?date=2025-06-02", "", nil)
	if resp.StatusCode != http.StatusOK || string(body["data"]) != `["10:00"]` {
		t.Fatalf("booked slots = %d %s", resp.StatusCode, body["data"])
	}
}

func TestAppointmentAuthorization(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.book(t, s.customerToken, "2025-06-02T11:00:00Z")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var appt models.Appointment
	json.Unmarshal(body["data"], &appt)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"anonymous list", http.MethodGet, "/api/appointments", "", http.StatusUnauthorized},
		{"customer list all", http.MethodGet, "/api/appointments", s.customerToken, http.StatusForbidden},
		{"staff list all", http.MethodGet, "/api/appointments", s.staffToken, http.StatusOK},
		{"customer own", http.MethodGet, "/api/appointments/my", s.customerToken, http.StatusOK},
		{"customer by self", http.MethodGet, fmt.Sprintf("/api/appointments/user/%d", s.customerID), s.customerToken, http.StatusOK},
		{"customer by other", http.MethodGet, "/api/appointments/user/999", s.customerToken, http.StatusForbidden},
		{"customer get own", http.MethodGet, fmt.Sprintf("/api/appointments/%d", appt.ID), s.customerToken, http.StatusOK},
		{"get unknown", http.MethodGet, "/api/appointments/424242", s.staffToken, http.StatusNotFound},
		{"customer status change", http.MethodPatch, fmt.Sprintf("/api/appointments/%d/status?status=CONFIRMED", appt.ID), s.customerToken, http.StatusForbidden},
		{"staff bad transition", http.MethodPatch, fmt.Sprintf("/api/appointments/%d/status?status=COMPLETED", appt.ID), s.staffToken, http.StatusBadRequest},
		{"staff confirm", http.MethodPatch, fmt.Sprintf("/api/appointments/%d/status?status=CONFIRMED", appt.ID), s.staffToken, http.StatusOK},
		{"staff recent", http.MethodGet, "/api/appointments/recent", s.staffToken, http.StatusOK},
		{"staff by status", http.MethodGet, "/api/appointments/status/CONFIRMED", s.staffToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := s.do(t, tt.method, tt.path, tt.token, nil)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestNotificationEndpoints(t *testing.T) {
	s := newTestServer(t)
	base := fmt.Sprintf("/api/notifications/user/%d", s.customerID)

	resp, body := s.do(t, http.MethodPost, "/api/notifications", s.staffToken, map[string]any{
		"user_id": s.customerID,
		"title":   "Payment Received",
		"message": "We received $49.99.",
		"type":    models.CategoryPayment,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", resp.StatusCode, body["message"])
	}
	var n models.Notification
	json.Unmarshal(body["data"], &n)

	resp, _ = s.do(t, http.MethodPost, "/api/notifications", s.customerToken, map[string]any{})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer create status = %d", resp.StatusCode)
	}

	_, body = s.do(t, http.MethodGet, base+"/unread/count", s.customerToken, nil)
	if string(body["data"]) != `{"count":1}` {
		t.Fatalf("unread count = %s", body["data"])
	}

	resp, _ = s.do(t, http.MethodGet, "/api/notifications/user/999", s.customerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("other user's list = %d", resp.StatusCode)
	}

	resp, body = s.do(t, http.MethodPatch, fmt.Sprintf("/api/notifications/%d/read", n.ID), s.customerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark read = %d", resp.StatusCode)
	}

	_, body = s.do(t, http.MethodGet, base+"/unread/count", s.customerToken, nil)
	if string(body["data"]) != `{"count":0}` {
		t.Fatalf("unread count after read = %s", body["data"])
	}

	resp, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/api/notifications/%d", n.ID), s.customerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete = %d", resp.StatusCode)
	}
	resp, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/notifications/%d", n.ID), s.customerToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted = %d", resp.StatusCode)
	}
}

func dial(t *testing.T, s *testServer, token string) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/ws?token=" + token
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *gws.Conn) websocket.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg websocket.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestLiveChannelReceivesEventsAfterCommit(t *testing.T) {
	s := newTestServer(t)

	staff := dial(t, s, s.staffToken)
	staff.WriteJSON(websocket.ClientMessage{Action: websocket.ActionSubscribe, Topics: []string{websocket.TopicAppointments}})
	if msg := readMessage(t, staff); msg.Type != websocket.TypeSubscribeAck {
		t.Fatalf("staff ack = %s", msg.Type)
	}

	customer := dial(t, s, s.customerToken)
	customer.WriteJSON(websocket.ClientMessage{
		Action: websocket.ActionSubscribe,
		Topics: []string{websocket.TopicAppointments, websocket.AppointmentOwnerTopic(strconv.FormatInt(s.customerID, 10))},
	})
	if msg := readMessage(t, customer); msg.Type != websocket.TypeError || msg.Topic != websocket.TopicAppointments {
		t.Fatalf("customer global subscribe = %s %s", msg.Type, msg.Topic)
	}
	if msg := readMessage(t, customer); msg.Type != websocket.TypeSubscribeAck {
		t.Fatalf("customer ack = %s", msg.Type)
	}

	resp, body := s.book(t, s.customerToken, "2025-06-03T09:00:00Z")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var appt models.Appointment
	json.Unmarshal(body["data"], &appt)

	for name, conn := range map[string]*gws.Conn{"staff": staff, "customer": customer} {
		msg := readMessage(t, conn)
		if msg.Type != websocket.TypeAppointmentCreated {
			t.Fatalf("%s event = %s", name, msg.Type)
		}
		payload, _ := json.Marshal(msg.Payload)
		var ev websocket.AppointmentEventPayload
		json.Unmarshal(payload, &ev)
		if ev.AppointmentID != appt.ID || ev.Kind != models.EventCreated {
			t.Fatalf("%s payload = %+v", name, ev)
		}
	}

	// A rejected booking publishes nothing; the next frame is the cancellation.
	if resp, _ := s.book(t, s.staffToken, "2025-06-03T09:00:00Z"); resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d", resp.StatusCode)
	}
	path := fmt.Sprintf("/api/appointments/%d/status?status=CANCELLED", appt.ID)
	if resp, _ := s.do(t, http.MethodPatch, path, s.staffToken, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}
	if msg := readMessage(t, staff); msg.Type != websocket.TypeAppointmentCancelled {
		t.Fatalf("after conflict, staff event = %s", msg.Type)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Get(s.URL + "/api/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var h struct {
		Status      string `json:"status"`
		DBConnected bool   `json:"db_connected"`
	}
	json.NewDecoder(resp.Body).Decode(&h)
	if resp.StatusCode != http.StatusOK || h.Status != "healthy" || !h.DBConnected {
		t.Fatalf("health = %d %+v", resp.StatusCode, h)
	}
}
