package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// LeaveRecord is one approved leave overlapping a patrol date, as
// reported by the application service.
type LeaveRecord struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// LeaveClient calls the application service over HTTP to look up
// approved leaves for a date, building and entrance.
type LeaveClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewLeaveClient builds a client for the application service with the
// same bounded-timeout discipline as the identity client.
func NewLeaveClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *LeaveClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		SetHeader("Accept", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return &LeaveClient{http: c, logger: logger}
}

// GetApprovedLeaves returns the approved leaves overlapping the given
// date for residents of the given building and entrance.  Date is
// formatted YYYY-MM-DD.
func (c *LeaveClient) GetApprovedLeaves(ctx context.Context, date, building string, entrance int) ([]LeaveRecord, error) {
	var out struct {
		Items []LeaveRecord `json:"items"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("date", date).
		SetQueryParam("building", building).
		SetQueryParam("entrance", strconv.Itoa(entrance)).
		SetResult(&out).
		Get("/api/v1/applications/approved-leaves")
	if err != nil {
		c.logger.Error("application service call failed",
			zap.String("date", date),
			zap.String("building", building),
			zap.Int("entrance", entrance),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: leave ledger: %v", ErrUnavailable, err)
	}
	if !resp.IsSuccess() {
		c.logger.Error("application service returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("date", date),
			zap.String("building", building),
			zap.Int("entrance", entrance),
		)
		return nil, fmt.Errorf("%w: leave ledger: status %d", ErrUnavailable, resp.StatusCode())
	}
	return out.Items, nil
}

// LeaveStub satisfies the ledger interface with fixture data for
// development when the application service is not running.
type LeaveStub struct{}

// GetApprovedLeaves returns one approved leave for building 8
// entrance 1 and nothing elsewhere, mirroring the identity stub.
func (LeaveStub) GetApprovedLeaves(_ context.Context, date, building string, entrance int) ([]LeaveRecord, error) {
	if building == "8" && entrance == 1 {
		return []LeaveRecord{
			{UserID: "00000000-0000-0000-0000-000000000002", Reason: "City trip"},
		}, nil
	}
	return []LeaveRecord{}, nil
}
