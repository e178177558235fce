// Package consul locates the Essence backend through HashiCorp Consul and
// registers the gateway so other services can find it.
package consul

import (
	consulapi "github.com/hashicorp/consul/api"
)

// Client wraps the Consul API client
type Client struct {
	api *consulapi.Client
}

// NewClient creates a Consul client for the agent at addr. token is the ACL
// token and may be empty.
func NewClient(addr, token string) (*Client, error) {
	config := consulapi.DefaultConfig()
	if addr != "" {
		config.Address = addr
	}
	if token != "" {
		config.Token = token
	}

	client, err := consulapi.NewClient(config)
	if err != nil {
		return nil, err
	}
	return &Client{api: client}, nil
}

// API returns the underlying Consul API client
func (c *Client) API() *consulapi.Client {
	return c.api
}
