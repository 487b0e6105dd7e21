package rchclient

import (
	"context"
	"net/http"
)

// Login exchanges credentials for a session and stores its token on c.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var sess Session
	body := map[string]string{"email": email, "password": password}
	if err := c.request(ctx, http.MethodPost, "/auth/login", body, &sess); err != nil {
		return nil, err
	}
	c.Token = sess.BackendToken
	return &sess, nil
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	var u User
	if err := c.request(ctx, http.MethodPost, "/auth/signup", req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// -- Specialties --

func (c *Client) GetSpecialties(ctx context.Context) ([]Specialty, error) {
	var out []Specialty
	err := c.request(ctx, http.MethodGet, "/specialties", nil, &out)
	return out, err
}

func (c *Client) GetSpecialty(ctx context.Context, id string) (*Specialty, error) {
	var out Specialty
	if err := c.request(ctx, http.MethodGet, "/specialties/"+escape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSpecialty posts data, any value encoding to the specialty input.
func (c *Client) CreateSpecialty(ctx context.Context, data interface{}) (*Specialty, error) {
	var out Specialty
	if err := c.request(ctx, http.MethodPost, "/specialties", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSpecialty(ctx context.Context, id string, data interface{}) (*Specialty, error) {
	var out Specialty
	if err := c.request(ctx, http.MethodPatch, "/specialties/"+escape(id), data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSpecialty(ctx context.Context, id string) error {
	return c.request(ctx, http.MethodDelete, "/specialties/"+escape(id), nil, nil)
}

// -- Doctors --

func (c *Client) GetDoctors(ctx context.Context) ([]Doctor, error) {
	var out []Doctor
	err := c.request(ctx, http.MethodGet, "/doctors", nil, &out)
	return out, err
}

func (c *Client) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	var out Doctor
	if err := c.request(ctx, http.MethodGet, "/doctors/"+escape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateDoctor(ctx context.Context, data interface{}) (*Doctor, error) {
	var out Doctor
	if err := c.request(ctx, http.MethodPost, "/doctors", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDoctor(ctx context.Context, id string, data interface{}) (*Doctor, error) {
	var out Doctor
	if err := c.request(ctx, http.MethodPatch, "/doctors/"+escape(id), data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDoctor(ctx context.Context, id string) error {
	return c.request(ctx, http.MethodDelete, "/doctors/"+escape(id), nil, nil)
}

// -- Users (admin) --

func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := c.request(ctx, http.MethodGet, "/users", nil, &out)
	return out, err
}

func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var out User
	if err := c.request(ctx, http.MethodGet, "/users/"+escape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateUser(ctx context.Context, data interface{}) (*User, error) {
	var out User
	if err := c.request(ctx, http.MethodPost, "/users", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, data interface{}) (*User, error) {
	var out User
	if err := c.request(ctx, http.MethodPatch, "/users/"+escape(id), data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.request(ctx, http.MethodDelete, "/users/"+escape(id), nil, nil)
}

// -- Ally codes --

func (c *Client) LookupCode(ctx context.Context, code string) (*CodeLookup, error) {
	var out CodeLookup
	if err := c.request(ctx, http.MethodGet, "/ally/codes/"+escape(code), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RedeemCode(ctx context.Context, code string) (*CodeLookup, error) {
	var out CodeLookup
	if err := c.request(ctx, http.MethodPost, "/ally/codes/"+escape(code)+"/redeem", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
