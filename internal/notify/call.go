package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/metrics"
	"github.com/medalert/medalert/internal/models"
)

// CallGateway dispatches emergency voice calls through an external
// telephony HTTP endpoint. Success means the gateway accepted the dispatch,
// nothing more.
type CallGateway struct {
	client *resty.Client
	url    string
	logger *logrus.Logger
}

// NewCallGateway creates a gateway client. url may be empty, in which case
// every call reports ErrNotConfigured.
func NewCallGateway(url string, logger *logrus.Logger) *CallGateway {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(0)

	return &CallGateway{client: client, url: url, logger: logger}
}

type callRequest struct {
	DispatchID string `json:"dispatch_id"`
	Phone      string `json:"phone"`
	Name       string `json:"name"`
	Reason     string `json:"reason"`
}

func (g *CallGateway) PlaceCall(ctx context.Context, contact *models.EmergencyContact) error {
	if g.url == "" {
		metrics.CallPlaced("not_configured")
		return ErrNotConfigured
	}
	if contact == nil {
		metrics.CallPlaced("no_contact")
		return fmt.Errorf("no emergency contact resolved")
	}

	req := callRequest{
		DispatchID: uuid.NewString(),
		Phone:      contact.Phone,
		Name:       contact.Name,
		Reason:     "medication emergency",
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(g.url)
	if err != nil {
		metrics.CallPlaced("error")
		return fmt.Errorf("failed to dispatch emergency call: %w", err)
	}
	if resp.IsError() {
		metrics.CallPlaced("error")
		return fmt.Errorf("call gateway rejected dispatch: %s", resp.Status())
	}

	metrics.CallPlaced("ok")
	g.logger.WithFields(logrus.Fields{
		"dispatch_id": req.DispatchID,
		"contact":     contact.Name,
	}).Info("Emergency call dispatched")

	return nil
}
