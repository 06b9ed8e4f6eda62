package codec

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestJSONSerializer_Serialize(t *testing.T) {
	e := echo.New()
	e.JSONSerializer = JSONSerializer{}
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := c.JSON(http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %q, want %q", got, `{"status":"ok"}`)
	}
}

func TestJSONSerializer_Deserialize(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid", `{"name":"x"}`, 0},
		{"syntax error", `{"name":`, http.StatusBadRequest},
		{"type error", `{"name":42}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c := e.NewContext(req, httptest.NewRecorder())

			var v struct {
				Name string `json:"name"`
			}
			err := JSONSerializer{}.Deserialize(c, &v)
			if tt.wantCode == 0 {
				if err != nil {
					t.Fatalf("Deserialize() error = %v", err)
				}
				if v.Name != "x" {
					t.Errorf("Name = %q, want %q", v.Name, "x")
				}
				return
			}
			var he *echo.HTTPError
			if !errors.As(err, &he) {
				t.Fatalf("Deserialize() error = %v, want *echo.HTTPError", err)
			}
			if he.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", he.Code, tt.wantCode)
			}
		})
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{`{"ticket":"abc"}`, true},
		{`[1,2,3]`, true},
		{`"string"`, true},
		{`{"ticket":`, false},
		{`<html></html>`, false},
		{``, false},
	}
	for _, tt := range tests {
		if got := Valid([]byte(tt.in)); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
