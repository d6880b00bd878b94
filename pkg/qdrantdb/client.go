package qdrantdb

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

const defaultGRPCPort = 6334

type ArchiveClient struct {
	Client *qdrant.Client
}

// NewClient connects to the qdrant gRPC endpoint described by rawURL, e.g.
// "http://localhost:6334" or "https://cluster.cloud.qdrant.io:6334".
func NewClient(rawURL, apiKey string) (*ArchiveClient, error) {
	host, port, useTLS, err := parseAddress(rawURL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &ArchiveClient{Client: client}, nil
}

func (c *ArchiveClient) Close() error {
	return c.Client.Close()
}

func parseAddress(rawURL string) (string, int, bool, error) {
	if rawURL == "" {
		return "", 0, false, fmt.Errorf("qdrant url is required")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "http://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port := defaultGRPCPort
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid qdrant port: %w", err)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}
