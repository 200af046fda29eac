package backend

import (
	"context"
	"encoding/json"
	"net/http"
)

// RegisterRequest is a customer registration, already validated and
// normalized by the caller.
type RegisterRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Phone                string `json:"phone"`
	Address              string `json:"address"`
	City                 string `json:"city"`
	ZipCode              string `json:"zip_code"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Response, error) {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/auth/register",
		body:   req,
	})
}

// Login forwards credentials unchanged.
func (c *Client) Login(ctx context.Context, body json.RawMessage) (*Response, error) {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   body,
	})
}
