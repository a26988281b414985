package recaptcha

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func siteverifyStub(t *testing.T, response string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("secret") == "" || r.PostForm.Get("response") == "" {
			t.Errorf("form missing fields: %v", r.PostForm)
		}
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifyAcceptsGoodScore(t *testing.T) {
	t.Parallel()
	srv := siteverifyStub(t, `{"success":true,"score":0.9,"action":"signup"}`)
	v := New("secret", 0.5, srv.URL)

	if err := v.Verify(context.Background(), "token"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsLowScore(t *testing.T) {
	t.Parallel()
	srv := siteverifyStub(t, `{"success":true,"score":0.2}`)
	v := New("secret", 0.5, srv.URL)

	err := v.Verify(context.Background(), "token")
	if !errors.Is(err, ErrLowScore) {
		t.Fatalf("error = %v, want ErrLowScore", err)
	}
}

func TestVerifyRejectsFailedToken(t *testing.T) {
	t.Parallel()
	srv := siteverifyStub(t, `{"success":false,"error-codes":["invalid-input-response"]}`)
	v := New("secret", 0.5, srv.URL)

	err := v.Verify(context.Background(), "token")
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("error = %v, want ErrVerificationFailed", err)
	}
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	t.Parallel()
	v := New("secret", 0.5, "http://unused.invalid")
	err := v.Verify(context.Background(), "")
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("error = %v, want ErrVerificationFailed", err)
	}
}

func TestScoreAtThresholdPasses(t *testing.T) {
	t.Parallel()
	srv := siteverifyStub(t, `{"success":true,"score":0.5}`)
	v := New("secret", 0.5, srv.URL)

	if err := v.Verify(context.Background(), "token"); err != nil {
		t.Fatalf("Verify at threshold: %v", err)
	}
}
