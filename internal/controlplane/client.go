// Package controlplane talks to the optional remote control plane over MCP.
// Query tools prefer this path and fall back to direct cluster access when
// the control plane is unreachable.
package controlplane

import (
	"context"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/kubechat-dev/kubechat/internal/config"
	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
)

// Delegate is the remote tool execution surface the tool layer depends on.
type Delegate interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error)
	Healthy(ctx context.Context) error
}

// Client is an MCP-backed Delegate over streamable HTTP.
type Client struct {
	mcp    *mcpclient.Client
	cfg    config.ControlPlaneConfig
	logger *zap.Logger
}

// NewClient connects to the control plane and performs the MCP handshake.
// Returns an error when the endpoint is unreachable; callers decide whether
// to run without delegation.
func NewClient(ctx context.Context, cfg config.ControlPlaneConfig, logger *zap.Logger) (*Client, error) {
	c, err := mcpclient.NewStreamableHttpClient(cfg.URL)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "failed to create control plane client", err)
	}

	if err := c.Start(ctx); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "failed to start control plane transport", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "kubechat", Version: "0.1.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "control plane handshake failed", err)
	}

	logger.Info("connected to control plane", zap.String("url", cfg.URL))
	return &Client{mcp: c, cfg: cfg, logger: logger}, nil
}

// CallTool invokes a named tool on the control plane and returns the
// concatenated text content of the result.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := c.mcp.CallTool(ctx, req)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeUpstream, fmt.Sprintf("control plane call %s failed", name), err)
	}

	text := flattenContent(res.Content)
	if res.IsError {
		return "", apperrors.New(apperrors.ErrCodeUpstream, fmt.Sprintf("control plane tool %s returned an error: %s", name, text), nil)
	}
	return text, nil
}

// Healthy pings the control plane.
func (c *Client) Healthy(ctx context.Context) error {
	if err := c.mcp.Ping(ctx); err != nil {
		return apperrors.New(apperrors.ErrCodeUpstream, "control plane unreachable", err)
	}
	return nil
}

// Close shuts down the transport.
func (c *Client) Close() error {
	return c.mcp.Close()
}

func flattenContent(content []mcp.Content) string {
	var sb strings.Builder
	for _, item := range content {
		if tc, ok := item.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
