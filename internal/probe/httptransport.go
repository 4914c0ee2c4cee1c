package probe

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/roomops/vcwatch/internal/domain"
)

// HTTPTransport talks to room devices over their management API and to the
// vendor cloud API. Room devices ship self-signed certificates, so the
// device client skips verification; the cloud client does not.
type HTTPTransport struct {
	DeviceUser string
	DevicePass string

	CloudBaseURL string
	CloudToken   string

	deviceClient *http.Client
	cloudClient  *http.Client
}

func NewHTTPTransport(deviceUser, devicePass, cloudBaseURL, cloudToken string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		DeviceUser:   deviceUser,
		DevicePass:   devicePass,
		CloudBaseURL: cloudBaseURL,
		CloudToken:   cloudToken,
		deviceClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		cloudClient: &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) DeviceStatus(ctx context.Context, room *domain.Room) (*RawDeviceStatus, error) {
	if room.Address == "" {
		return nil, &domain.ProbeError{Kind: domain.ProbeUnreachable, Err: errors.New("no device address configured")}
	}
	url := fmt.Sprintf("https://%s/api/status", room.Address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.ProbeError{Kind: domain.ProbeUnreachable, Err: err}
	}
	req.SetBasicAuth(t.DeviceUser, t.DevicePass)

	var out RawDeviceStatus
	if err := t.do(t.deviceClient, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) CloudStatus(ctx context.Context, room *domain.Room) (*RawDeviceStatus, error) {
	if room.VendorDeviceID == "" {
		return nil, &domain.ProbeError{Kind: domain.ProbeUnreachable, Err: errors.New("no vendor device ID configured")}
	}
	url := fmt.Sprintf("%s/devices/%s/status", t.CloudBaseURL, room.VendorDeviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.ProbeError{Kind: domain.ProbeUnreachable, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+t.CloudToken)

	var out RawDeviceStatus
	if err := t.do(t.cloudClient, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) PlaceTestCall(ctx context.Context, room *domain.Room) (*RawCallMetrics, error) {
	if room.VendorDeviceID == "" {
		return nil, &domain.ProbeError{Kind: domain.ProbeUnreachable, Err: errors.New("no vendor device ID configured")}
	}
	url := fmt.Sprintf("%s/devices/%s/testcall", t.CloudBaseURL, room.VendorDeviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, &domain.ProbeError{Kind: domain.ProbeUnreachable, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+t.CloudToken)

	var out RawCallMetrics
	if err := t.do(t.cloudClient, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) do(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return classifyNetErr(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &domain.ProbeError{Kind: domain.ProbeAuthFailure, Err: fmt.Errorf("http %d", resp.StatusCode)}
	case resp.StatusCode/100 != 2:
		return &domain.ProbeError{Kind: domain.ProbeUnreachable, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.ProbeError{Kind: domain.ProbeMalformedResponse, Err: err}
	}
	return nil
}

// classifyNetErr separates timeouts from plain reachability failures so the
// scheduler can make its retry decision from Kind alone.
func classifyNetErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ProbeError{Kind: domain.ProbeTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.ProbeError{Kind: domain.ProbeTimeout, Err: err}
	}
	return &domain.ProbeError{Kind: domain.ProbeUnreachable, Err: err}
}
