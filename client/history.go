package client

import (
	"context"
	"fmt"
	"hive-chat/api"
	"hive-chat/domain"
	"hive-chat/errors"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
)

// HTTPHistory fetches conversation snapshots from GET /messages.
type HTTPHistory struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPHistory(baseURL, token string, httpClient *http.Client) *HTTPHistory {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPHistory{baseURL: baseURL, token: token, httpClient: httpClient}
}

func (h *HTTPHistory) FetchHistory(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	query := url.Values{"user1": {userA}, "user2": {userB}}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/messages?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if h.token != "" {
		request.Header.Set("Authorization", "Bearer "+h.token)
	}
	response, err := h.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusOK:
	case response.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: history request rejected", errors.ErrValidation)
	case response.StatusCode == http.StatusUnauthorized:
		return nil, errors.ErrUnauthenticated
	case response.StatusCode == http.StatusForbidden:
		return nil, errors.ErrIdentityMismatch
	default:
		return nil, fmt.Errorf("%w: history answered %d", errors.ErrStorageUnavailable, response.StatusCode)
	}
	var messages []api.Message
	if err := json.NewDecoder(response.Body).Decode(&messages); err != nil {
		return nil, err
	}
	return api.ToMessages(messages), nil
}
