package orion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Orion context-broker REST client: subscription
// management plus entity helpers. The broker pushes notifications back
// to this service; nothing here touches the record store.
type Client struct {
	baseURL string
	service string
	client  *http.Client
}

// NewClient constructs an Orion client. service becomes the
// Fiware-Service header on every request; empty means none.
func NewClient(baseURL, service string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("orion: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		service: service,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Subscription is a registered notification subscription.
type Subscription struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// CreateSubscription registers a subscription so that changes to any
// entity of entityType on the watched attributes are pushed to
// notifyURL. Returns the broker-assigned subscription id.
func (c *Client) CreateSubscription(ctx context.Context, entityType string, attributes []string, notifyURL string) (string, error) {
	if entityType == "" {
		return "", errors.New("orion: empty entity type")
	}
	if len(attributes) == 0 {
		return "", errors.New("orion: no watched attributes")
	}
	if notifyURL == "" {
		return "", errors.New("orion: empty notify url")
	}

	body := map[string]any{
		"description": fmt.Sprintf("Notify telemetry store of %s changes", entityType),
		"subject": map[string]any{
			"entities": []map[string]any{
				{"idPattern": ".*", "type": entityType},
			},
			"condition": map[string]any{"attrs": attributes},
		},
		"notification": map[string]any{
			"http":     map[string]any{"url": notifyURL},
			"attrs":    attributes,
			"metadata": []string{"dateCreated", "dateModified"},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/subscriptions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("orion: create subscription http %d", resp.StatusCode)
	}
	location := resp.Header.Get("Location")
	parts := strings.Split(location, "/")
	return parts[len(parts)-1], nil
}

// ListSubscriptions returns all registered subscriptions.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	var subs []Subscription
	if err := c.doJSON(ctx, http.MethodGet, "/v2/subscriptions", nil, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// CreateEntity stores an entity document in the broker.
func (c *Client) CreateEntity(ctx context.Context, entity map[string]any) error {
	if len(entity) == 0 {
		return errors.New("orion: empty entity")
	}
	return c.doJSON(ctx, http.MethodPost, "/v2/entities", entity, nil)
}

// UpdateAttribute patches one attribute value of an entity.
func (c *Client) UpdateAttribute(ctx context.Context, entityID, attribute string, value any) error {
	if entityID == "" || attribute == "" {
		return errors.New("orion: empty entity id or attribute")
	}
	body := map[string]any{
		attribute: map[string]any{"value": value},
	}
	path := "/v2/entities/" + entityID + "/attrs"
	return c.doJSON(ctx, http.MethodPatch, path, body, nil)
}

// DeleteEntity removes an entity from the broker.
func (c *Client) DeleteEntity(ctx context.Context, entityID string) error {
	if entityID == "" {
		return errors.New("orion: empty entity id")
	}
	return c.doJSON(ctx, http.MethodDelete, "/v2/entities/"+entityID, nil, nil)
}

// CheckConnection verifies the broker answers its version endpoint.
func (c *Client) CheckConnection(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/version", nil, nil)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.service != "" {
		req.Header.Set("Fiware-Service", c.service)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("orion: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
