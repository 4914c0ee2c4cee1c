package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/roomops/vcwatch/internal/alert"
	"github.com/roomops/vcwatch/internal/domain"
)

// ServiceNow files incident records in a ServiceNow instance. Resolved
// transitions are skipped; closing tickets is a human workflow, not ours.
type ServiceNow struct {
	Host     string // instance host, e.g. acme.service-now.com
	Username string
	Password string
	Client   *http.Client
}

func NewServiceNow(host, username, password string) *ServiceNow {
	if host == "" || username == "" {
		return nil
	}
	return &ServiceNow{
		Host:     host,
		Username: username,
		Password: password,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *ServiceNow) Name() string { return "servicenow" }

type incidentPayload struct {
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Subcategory      string `json:"subcategory"`
	Urgency          string `json:"urgency"`
	Impact           string `json:"impact"`
	CallerID         string `json:"caller_id"`
}

func (s *ServiceNow) Send(ctx context.Context, ev alert.Event) error {
	if ev.Type == alert.EventResolved {
		return nil
	}

	payload := incidentPayload{
		ShortDescription: fmt.Sprintf("%s: %s (%s)", ev.Room.Name, ev.Alert.Cause, ev.Alert.Severity),
		Description: fmt.Sprintf("Room: %s\nLocation: %s\nSeverity: %s\nOpened: %s\n\n%s",
			ev.Room.Name, ev.Room.Location, ev.Alert.Severity,
			ev.Alert.OpenedAt.Format(time.RFC3339), ev.Alert.Cause),
		Category:    "Software",
		Subcategory: "Video Conferencing",
		Urgency:     urgencyFor(ev.Alert.Severity),
		Impact:      urgencyFor(ev.Alert.Severity),
		CallerID:    s.Username,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://%s/api/now/table/incident", s.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.Username, s.Password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return &domain.DispatchError{Kind: domain.DispatchChannelUnavailable, Channel: s.Name(), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return &domain.DispatchError{
			Kind:    domain.DispatchRejected,
			Channel: s.Name(),
			Err:     fmt.Errorf("http %d", resp.StatusCode),
		}
	}
	return nil
}

func urgencyFor(sev domain.Severity) string {
	switch sev {
	case domain.SeverityCritical:
		return "1"
	case domain.SeverityWarning:
		return "2"
	}
	return "3"
}
