package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var errInvalidExportToken = errors.New("invalid export token")

// exportTokenClaims authorize downloading one archived export document. The
// token is handed out in the import response, so browsers can fetch the raw
// document without carrying API keys in links.
type exportTokenClaims struct {
	UserID    string `json:"userId"`
	ImportID  string `json:"importId"`
	ExpiresAt int64  `json:"exp"`
}

func (h *Handler) hasExportTokenSecret() bool {
	return strings.TrimSpace(h.exportTokenSecret) != ""
}

func (h *Handler) signExportToken(userID, importID string, expiresAt time.Time) (string, error) {
	if !h.hasExportTokenSecret() {
		return "", errInvalidExportToken
	}

	claims := exportTokenClaims{
		UserID:    strings.TrimSpace(userID),
		ImportID:  strings.TrimSpace(importID),
		ExpiresAt: expiresAt.UTC().Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	encodedPayload := base64.RawURLEncoding.EncodeToString(payload)
	signature := h.signExportPayload(encodedPayload)
	return encodedPayload + "." + signature, nil
}

func (h *Handler) verifyExportToken(rawToken string) (exportTokenClaims, error) {
	if !h.hasExportTokenSecret() {
		return exportTokenClaims{}, errInvalidExportToken
	}

	parts := strings.Split(strings.TrimSpace(rawToken), ".")
	if len(parts) != 2 {
		return exportTokenClaims{}, errInvalidExportToken
	}

	encodedPayload := parts[0]
	signature := parts[1]
	expected := h.signExportPayload(encodedPayload)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return exportTokenClaims{}, errInvalidExportToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return exportTokenClaims{}, errInvalidExportToken
	}

	claims := exportTokenClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return exportTokenClaims{}, errInvalidExportToken
	}

	if claims.UserID == "" || claims.ImportID == "" {
		return exportTokenClaims{}, errInvalidExportToken
	}
	if claims.ExpiresAt < time.Now().UTC().Unix() {
		return exportTokenClaims{}, errInvalidExportToken
	}

	return claims, nil
}

func (h *Handler) signExportPayload(encodedPayload string) string {
	mac := hmac.New(sha256.New, []byte(h.exportTokenSecret))
	mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
