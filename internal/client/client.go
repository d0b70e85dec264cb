package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/service"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/types"
)

// DefaultAddr is where the daemon listens unless configured otherwise
const DefaultAddr = "http://127.0.0.1:8420"

// Client talks to the package manager daemon
type Client struct {
	resty *resty.Client
}

// envelope is the success body of every query
type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// New creates a client for the daemon at baseURL. Transactions may take
// as long as timeout before the daemon answers.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultAddr
	}
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "pm/1.0").
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	return &Client{resty: r}
}

// Install asks the daemon to install the package at path
func (c *Client) Install(ctx context.Context, path string) (*types.TransactionResponse, error) {
	return c.transaction(c.resty.R().
		SetContext(ctx).
		SetBody(types.InstallRequest{Path: path}).
		SetHeader("Content-Type", "application/json"),
		http.MethodPost, "/packages/install")
}

// Uninstall asks the daemon to remove a package
func (c *Client) Uninstall(ctx context.Context, name string, clearData bool) (*types.TransactionResponse, error) {
	return c.transaction(c.resty.R().
		SetContext(ctx).
		SetPathParam("name", name).
		SetQueryParam("clear_data", strconv.FormatBool(clearData)),
		http.MethodDelete, "/packages/{name}")
}

// List returns installed packages in the requested view
func (c *Client) List(ctx context.Context, view service.View, match string) (*service.Listing, error) {
	req := c.resty.R().SetContext(ctx)
	if view != "" {
		req.SetQueryParam("view", string(view))
	}
	if match != "" {
		req.SetQueryParam("match", match)
	}
	var out service.Listing
	return &out, query(req, http.MethodGet, "/packages", &out)
}

// Get returns one package record
func (c *Client) Get(ctx context.Context, name string) (*types.PackageRecord, error) {
	var out types.PackageRecord
	req := c.resty.R().SetContext(ctx).SetPathParam("name", name)
	return &out, query(req, http.MethodGet, "/packages/{name}", &out)
}

// SizeStats returns the disk usage of a package
func (c *Client) SizeStats(ctx context.Context, name string) (*types.PackageStats, error) {
	var out types.PackageStats
	req := c.resty.R().SetContext(ctx).SetPathParam("name", name)
	return &out, query(req, http.MethodGet, "/packages/{name}/stats", &out)
}

// ClearCache empties the data directory of a package
func (c *Client) ClearCache(ctx context.Context, name string) error {
	var out struct {
		Package string `json:"package"`
	}
	req := c.resty.R().SetContext(ctx).SetPathParam("name", name)
	return query(req, http.MethodPost, "/packages/{name}/clear-cache", &out)
}

// FirstBoot reports whether the daemon started without a package list
func (c *Client) FirstBoot(ctx context.Context) (bool, error) {
	var out struct {
		FirstBoot bool `json:"first_boot"`
	}
	err := query(c.resty.R().SetContext(ctx), http.MethodGet, "/first-boot", &out)
	return out.FirstBoot, err
}

// Stats returns registry and transaction statistics
func (c *Client) Stats(ctx context.Context) (*service.Stats, error) {
	var out service.Stats
	return &out, query(c.resty.R().SetContext(ctx), http.MethodGet, "/stats", &out)
}

// transaction decodes the same body shape for success and failure
func (c *Client) transaction(req *resty.Request, method, url string) (*types.TransactionResponse, error) {
	var out types.TransactionResponse
	resp, err := req.SetResult(&out).SetError(&out).Execute(method, url)
	if err != nil {
		return nil, types.NewError(types.KindNoService, method, "", err)
	}
	if out.TransactionID == "" {
		return nil, fmt.Errorf("unexpected response %s: %s", resp.Status(), resp.String())
	}
	return &out, nil
}

func query[T any](req *resty.Request, method, url string, out *T) error {
	var body envelope[T]
	var failure types.ErrorResponse

	resp, err := req.SetResult(&body).SetError(&failure).Execute(method, url)
	if err != nil {
		return types.NewError(types.KindNoService, method, "", err)
	}
	if resp.IsError() {
		kind := types.ErrorKind(failure.Code)
		if failure.Error == "" {
			return types.Errorf(types.KindIOError, method, "", "unexpected response %s", resp.Status())
		}
		return types.NewError(kind, "", "", errors.New(failure.Error))
	}
	*out = body.Data
	return nil
}
