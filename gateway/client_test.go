package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/gateway"
)

type backend struct {
	mux *http.ServeMux

	mu         sync.Mutex
	requestIDs []string
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	b := &backend{mux: http.NewServeMux()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requestIDs = append(b.requestIDs, r.Header.Get(gateway.HeaderRequestID))
		b.mu.Unlock()
		b.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return b, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientLogin(t *testing.T) {
	b, srv := newBackend(t)
	b.mux.HandleFunc(gateway.LoginPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get(gateway.HeaderRequestID))

		var creds auth.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Password != "secret-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": "a.b.c"})
	})

	client := gateway.New(srv.URL + "/")

	token, err := client.Login(context.Background(), auth.Credentials{Email: "ana@shop.test", Password: "secret-1"})
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", token)

	_, err = client.Login(context.Background(), auth.Credentials{Email: "ana@shop.test", Password: "wrong-1"})
	require.True(t, auth.IsGatewayRejectedError(err), "got %v", err)

	var authErr *auth.Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Code)
	assert.Equal(t, "Invalid credentials", authErr.Metadata["message"])
}

func TestClientLoginEmptyToken(t *testing.T) {
	b, srv := newBackend(t)
	b.mux.HandleFunc(gateway.LoginPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})

	_, err := gateway.New(srv.URL).Login(context.Background(), auth.Credentials{})
	assert.True(t, auth.IsGatewayRejectedError(err))
}

func TestClientRegister(t *testing.T) {
	b, srv := newBackend(t)
	b.mux.HandleFunc(gateway.RegisterPath, func(w http.ResponseWriter, r *http.Request) {
		var reg auth.Registration
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reg))
		if reg.Email == "taken@shop.test" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "User already exists"})
			return
		}
		assert.Equal(t, auth.RoleSeller, reg.Role)
		writeJSON(w, http.StatusCreated, map[string]any{
			"message":  "User created successfully",
			"response": map[string]string{"id": "42", "name": reg.Name, "email": reg.Email},
		})
	})

	client := gateway.New(srv.URL)
	reg := auth.Registration{Name: "Ana", Email: "ana@shop.test", Password: "secret-1", Role: auth.RoleSeller}

	id, err := client.Register(context.Background(), reg)
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	reg.Email = "taken@shop.test"
	_, err = client.Register(context.Background(), reg)
	require.True(t, auth.IsGatewayRejectedError(err))

	var authErr *auth.Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "User already exists", authErr.Metadata["message"])
}

func TestClientGetProfile(t *testing.T) {
	b, srv := newBackend(t)
	b.mux.HandleFunc(gateway.ProfilePath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"id":     "s-1",
			"name":   "Ana",
			"email":  "ana@shop.test",
			"role":   "seller",
			"avatar": "/media/ana.png",
		})
	})

	client := gateway.New(srv.URL)

	profile, err := client.GetProfile(context.Background(), "token-1")
	require.NoError(t, err)
	assert.Equal(t, &auth.UserProfile{
		ID:     "s-1",
		Name:   "Ana",
		Email:  "ana@shop.test",
		Role:   auth.RoleSeller,
		Avatar: "/media/ana.png",
	}, profile)

	_, err = client.GetProfile(context.Background(), "other")
	assert.True(t, auth.IsProfileUnavailableError(err))
	assert.True(t, auth.IsGatewayRejectedError(err))
	assert.False(t, auth.IsGatewayUnavailableError(err))
}

func TestClientServerErrors(t *testing.T) {
	b, srv := newBackend(t)
	b.mux.HandleFunc(gateway.LoginPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := gateway.New(srv.URL).Login(context.Background(), auth.Credentials{})
	require.True(t, auth.IsGatewayUnavailableError(err))

	var authErr *auth.Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadGateway, authErr.Code)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), authErr.Metadata["message"])
}

func TestClientUnreachable(t *testing.T) {
	_, srv := newBackend(t)
	url := srv.URL
	srv.Close()

	_, err := gateway.New(url).Login(context.Background(), auth.Credentials{})
	assert.True(t, auth.IsGatewayUnavailableError(err))
}

func TestClientTimeout(t *testing.T) {
	b, srv := newBackend(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	b.mux.HandleFunc(gateway.LoginPath, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	_, err := gateway.New(srv.URL, gateway.WithTimeout(50*time.Millisecond)).Login(context.Background(), auth.Credentials{})
	assert.True(t, auth.IsGatewayUnavailableError(err))
}

func TestClientRequestIDsAreUnique(t *testing.T) {
	b, srv := newBackend(t)
	b.mux.HandleFunc(gateway.LoginPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token": "a.b.c"})
	})

	client := gateway.New(srv.URL, gateway.WithHTTPClient(srv.Client()), gateway.WithLogger(auth.NopLogger{}))
	for i := 0; i < 3; i++ {
		_, err := client.Login(context.Background(), auth.Credentials{})
		require.NoError(t, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	seen := map[string]bool{}
	for _, id := range b.requestIDs {
		seen[id] = true
	}
	assert.Len(t, seen, 3)
}
