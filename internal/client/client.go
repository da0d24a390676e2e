package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"repairconnect/internal/models"
)

// Client is an HTTP client for the record store API. All operations are
// plain request/response with a static bearer token; errors surface as
// *NotFoundError, *RequestError or *ValidationError and are never retried.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New constructs a client for the given base URL and bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type envelope struct {
	Success   bool               `json:"success"`
	Error     string             `json:"error"`
	Booking   *models.Booking    `json:"booking"`
	Message   *models.Message    `json:"message"`
	Messages  []*models.Message  `json:"messages"`
	Rating    *models.Rating     `json:"rating"`
	Ratings   []*models.Rating   `json:"ratings"`
	Mechanics []*models.Mechanic `json:"mechanics"`
}

// ListMechanics fetches the mechanic catalog.
func (c *Client) ListMechanics(ctx context.Context) ([]*models.Mechanic, error) {
	env, err := c.do(ctx, http.MethodGet, "/mechanics", nil, "mechanic", "")
	if err != nil {
		return nil, err
	}
	return env.Mechanics, nil
}

// CreateBooking submits a new booking. Client-side completeness checks
// run before any network call.
func (c *Client) CreateBooking(ctx context.Context, req models.Booking) (*models.Booking, error) {
	if strings.TrimSpace(req.MechanicID) == "" {
		return nil, &ValidationError{Field: "mechanicId", Message: "must not be empty"}
	}
	if strings.TrimSpace(req.Service) == "" {
		return nil, &ValidationError{Field: "service", Message: "must not be empty"}
	}

	body := map[string]any{
		"mechanicId": req.MechanicID,
		"service":    req.Service,
		"date":       req.Date,
		"time":       req.Time,
		"vehicle":    req.Vehicle,
	}
	env, err := c.do(ctx, http.MethodPost, "/bookings", body, "booking", "")
	if err != nil {
		return nil, err
	}
	return env.Booking, nil
}

func (c *Client) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	env, err := c.do(ctx, http.MethodGet, "/bookings/"+url.PathEscape(id), nil, "booking", id)
	if err != nil {
		return nil, err
	}
	return env.Booking, nil
}

func (c *Client) UpdateBookingStatus(ctx context.Context, id, status string) (*models.Booking, error) {
	if !models.ValidStatus(status) {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}

	env, err := c.do(ctx, http.MethodPatch, "/bookings/"+url.PathEscape(id)+"/status",
		map[string]string{"status": status}, "booking", id)
	if err != nil {
		return nil, err
	}
	return env.Booking, nil
}

// ListMessages returns a booking's chat history, ascending by timestamp.
func (c *Client) ListMessages(ctx context.Context, bookingID string) ([]*models.Message, error) {
	env, err := c.do(ctx, http.MethodGet, "/chat/"+url.PathEscape(bookingID), nil, "booking", bookingID)
	if err != nil {
		return nil, err
	}
	return env.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, bookingID string, msg models.Message) (*models.Message, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return nil, &ValidationError{Field: "text", Message: "must not be empty"}
	}
	sender := msg.Sender
	if sender == "" {
		sender = models.SenderUser
	}

	body := map[string]string{"sender": sender, "text": msg.Text}
	if msg.Image != "" {
		body["image"] = msg.Image
	}

	env, err := c.do(ctx, http.MethodPost, "/chat/"+url.PathEscape(bookingID), body, "booking", bookingID)
	if err != nil {
		return nil, err
	}
	return env.Message, nil
}

// SubmitRating validates the 1-5 bound locally and submits the rating.
func (c *Client) SubmitRating(ctx context.Context, rating models.Rating) (*models.Rating, error) {
	if !models.ValidRating(rating.Rating) {
		return nil, &ValidationError{
			Field:   "rating",
			Message: fmt.Sprintf("must be between %d and %d", models.MinRating, models.MaxRating),
		}
	}

	body := map[string]any{
		"mechanicId": rating.MechanicID,
		"bookingId":  rating.BookingID,
		"rating":     rating.Rating,
		"comment":    rating.Comment,
	}
	env, err := c.do(ctx, http.MethodPost, "/ratings", body, "rating", "")
	if err != nil {
		return nil, err
	}
	return env.Rating, nil
}

func (c *Client) ListRatings(ctx context.Context, mechanicID string) ([]*models.Rating, error) {
	env, err := c.do(ctx, http.MethodGet, "/mechanics/"+url.PathEscape(mechanicID)+"/ratings", nil, "mechanic", mechanicID)
	if err != nil {
		return nil, err
	}
	return env.Ratings, nil
}

// Health checks the store's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return &RequestError{Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &RequestError{StatusCode: resp.StatusCode, Message: "health check failed"}
	}
	return nil
}

// do performs a request and decodes the {success,...} envelope.
// notFoundResource/notFoundID shape the error for 404 responses.
func (c *Client) do(ctx context.Context, method, path string, body any, notFoundResource, notFoundID string) (*envelope, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &RequestError{Err: err}
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{Resource: notFoundResource, ID: notFoundID}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := env.Error
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: message}
	}
	if decodeErr != nil {
		return nil, &RequestError{Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	return &env, nil
}
