package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/roomops/vcwatch/internal/alert"
	"github.com/roomops/vcwatch/internal/domain"
)

func testEvent(t alert.EventType) alert.Event {
	return alert.Event{
		Type: t,
		Alert: domain.Alert{
			ID:       "a1",
			RoomID:   "r1",
			Severity: domain.SeverityCritical,
			Cause:    "device unreachable",
			OpenedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		},
		Room: domain.Room{ID: "r1", Name: "Boardroom", Location: "HQ 3F"},
	}
}

func TestEmail_BuildsMessageAndSends(t *testing.T) {
	var sentTo []string
	var sentMsg []byte
	e := NewEmail("mail:25", "vcwatch@example.com", []string{"ops@example.com"})
	e.send = func(addr, from string, to []string, msg []byte) error {
		sentTo = to
		sentMsg = msg
		return nil
	}

	if err := e.Send(context.Background(), testEvent(alert.EventOpened)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sentTo) != 1 || sentTo[0] != "ops@example.com" {
		t.Fatalf("recipients wrong: %v", sentTo)
	}
	body := string(sentMsg)
	if !strings.Contains(body, "Subject: [vcwatch] Alert opened - Boardroom") {
		t.Fatalf("subject missing: %s", body)
	}
	if !strings.Contains(body, "Severity: CRITICAL") || !strings.Contains(body, "device unreachable") {
		t.Fatalf("body incomplete: %s", body)
	}
}

func TestEmail_FailureIsTypedDispatchError(t *testing.T) {
	e := NewEmail("mail:25", "a@b", []string{"c@d"})
	e.send = func(addr, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}

	err := e.Send(context.Background(), testEvent(alert.EventOpened))
	var de *domain.DispatchError
	if !errors.As(err, &de) || de.Kind != domain.DispatchChannelUnavailable {
		t.Fatalf("want channel-unavailable, got %v", err)
	}
}

func TestEmail_NilWhenUnconfigured(t *testing.T) {
	if NewEmail("", "from", []string{"to"}) != nil {
		t.Fatal("no SMTP addr should disable the channel")
	}
	if NewEmail("addr", "from", nil) != nil {
		t.Fatal("no recipients should disable the channel")
	}
}

func TestServiceNow_SkipsResolved(t *testing.T) {
	called := false
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer s.Close()

	sn := NewServiceNow("example.service-now.com", "svc", "pw")
	if err := sn.Send(context.Background(), testEvent(alert.EventResolved)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if called {
		t.Fatal("resolved events must not open tickets")
	}
}

func TestServiceNow_RejectedStatus(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer s.Close()

	sn := NewServiceNow("ignored", "svc", "pw")
	// point the client at the test server, ignoring the https URL scheme
	sn.Client = s.Client()
	sn.Host = strings.TrimPrefix(s.URL, "http://")
	// The https:// scheme in the URL won't match httptest; use a transport
	// that rewrites to the test server.
	sn.Client.Transport = rewriteTransport{base: s.URL}

	err := sn.Send(context.Background(), testEvent(alert.EventOpened))
	var de *domain.DispatchError
	if !errors.As(err, &de) || de.Kind != domain.DispatchRejected {
		t.Fatalf("want rejected, got %v", err)
	}
}

type rewriteTransport struct{ base string }

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.URL.Scheme = "http"
	req2.URL.Host = strings.TrimPrefix(rt.base, "http://")
	return http.DefaultTransport.RoundTrip(req2)
}

func TestMulti_JoinsErrors(t *testing.T) {
	good := channelFunc{name: "good"}
	bad := channelFunc{name: "bad", err: errors.New("down")}

	m := Multi{good, bad}
	err := m.Send(context.Background(), testEvent(alert.EventOpened))
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected joined error, got %v", err)
	}
}

type channelFunc struct {
	name string
	err  error
}

func (c channelFunc) Name() string                                    { return c.name }
func (c channelFunc) Send(ctx context.Context, ev alert.Event) error { return c.err }
