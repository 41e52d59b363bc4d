package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FCMPush posts offers to the FCM HTTPv1 endpoint. TokenLookup resolves a
// driver id to the device token the store holds for it.
type FCMPush struct {
	Endpoint    string
	Key         string
	Client      *http.Client
	TokenLookup func(driverID string) string
}

func NewFCMPush(endpoint, key string, tokenLookup func(string) string) *FCMPush {
	return &FCMPush{
		Endpoint:    endpoint,
		Key:         key,
		Client:      &http.Client{Timeout: 3 * time.Second},
		TokenLookup: tokenLookup,
	}
}

func (f *FCMPush) Send(ctx context.Context, driverID string, offer Offer) error {
	token := ""
	if f.TokenLookup != nil {
		token = f.TokenLookup(driverID)
	}
	body := map[string]interface{}{
		"message": map[string]interface{}{
			"token": token,
			"data":  offer,
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fcm push: status %d", resp.StatusCode)
	}
	return nil
}
