package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Resident is one minor resident as reported by the identity service.
// The user id is owned by that service; this system only references it.
type Resident struct {
	UserID string `json:"user_id"`
	Room   string `json:"room"`
}

// IdentityClient calls the identity service over HTTP.  The roster it
// returns is the source for seeding patrol entries.
type IdentityClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewIdentityClient builds a client for the identity service.  The
// timeout bounds every call independently of the patrol store's own
// transaction timeout; an unreachable peer must never hold a creation
// open.
func NewIdentityClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *IdentityClient {
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
	return &IdentityClient{http: c, logger: logger}
}

// GetMinorsByEntrance returns the current minor residents registered at
// the given building and entrance.
func (c *IdentityClient) GetMinorsByEntrance(ctx context.Context, building string, entrance int) ([]Resident, error) {
	var out struct {
		Items []Resident `json:"items"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("building", building).
		SetQueryParam("entrance", strconv.Itoa(entrance)).
		SetResult(&out).
		Get("/api/v1/users/minors")
	if err != nil {
		c.logger.Error("identity service call failed",
			zap.String("building", building),
			zap.Int("entrance", entrance),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: identity roster: %v", ErrUnavailable, err)
	}
	if !resp.IsSuccess() {
		c.logger.Error("identity service returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("building", building),
			zap.Int("entrance", entrance),
		)
		return nil, fmt.Errorf("%w: identity roster: status %d", ErrUnavailable, resp.StatusCode())
	}
	return out.Items, nil
}

// IdentityStub satisfies the roster interface with fixture data for
// development when the identity service is not running.
type IdentityStub struct{}

// GetMinorsByEntrance returns a fixed roster for building 8 entrance 1
// and an empty roster everywhere else.
func (IdentityStub) GetMinorsByEntrance(_ context.Context, building string, entrance int) ([]Resident, error) {
	if building == "8" && entrance == 1 {
		return []Resident{
			{UserID: "00000000-0000-0000-0000-000000000002", Room: "201"},
			{UserID: "00000000-0000-0000-0000-000000000003", Room: "301"},
		}, nil
	}
	return []Resident{}, nil
}
