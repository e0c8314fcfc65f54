package api

import (
	"strings"
	"testing"
	"time"
)

func TestExportTokenRoundTrip(t *testing.T) {
	h := &Handler{exportTokenSecret: "test-secret"}

	token, err := h.signExportToken("user-1", "run-abc", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	claims, err := h.verifyExportToken(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.ImportID != "run-abc" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestExportTokenExpired(t *testing.T) {
	h := &Handler{exportTokenSecret: "test-secret"}

	token, err := h.signExportToken("user-1", "run-abc", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := h.verifyExportToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestExportTokenTamperedPayload(t *testing.T) {
	h := &Handler{exportTokenSecret: "test-secret"}

	token, err := h.signExportToken("user-1", "run-abc", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	other, err := h.signExportToken("user-2", "run-abc", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	// Graft user-2's payload onto user-1's signature.
	forged := strings.Split(other, ".")[0] + "." + strings.Split(token, ".")[1]
	if _, err := h.verifyExportToken(forged); err == nil {
		t.Fatal("expected forged token to be rejected")
	}
}

func TestExportTokenWrongSecret(t *testing.T) {
	signer := &Handler{exportTokenSecret: "secret-a"}
	verifier := &Handler{exportTokenSecret: "secret-b"}

	token, err := signer.signExportToken("user-1", "run-abc", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := verifier.verifyExportToken(token); err == nil {
		t.Fatal("expected cross-secret token to be rejected")
	}
}

func TestExportTokenMalformed(t *testing.T) {
	h := &Handler{exportTokenSecret: "test-secret"}

	for _, raw := range []string{"", "no-dot", "a.b.c", "!!!.sig"} {
		if _, err := h.verifyExportToken(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestExportTokenRequiresSecret(t *testing.T) {
	h := &Handler{}

	if h.hasExportTokenSecret() {
		t.Fatal("blank secret should report as unset")
	}
	if _, err := h.signExportToken("user-1", "run-abc", time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected signing without a secret to fail")
	}
}
