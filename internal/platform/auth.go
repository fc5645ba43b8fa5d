package platform

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/outpost-ci/outpost/internal/intent"
)

// AppAuth mints installation tokens for a GitHub App. It satisfies
// TokenProvider so the pipeline can run either on a plain PAT or as
// an App installation.
type AppAuth struct {
	AppID      string
	PrivateKey string

	// BaseURL overrides the API host, for tests.
	BaseURL string
}

func (a *AppAuth) apiBase() string {
	if a.BaseURL != "" {
		return a.BaseURL
	}
	return "https://api.github.com"
}

// Token exchanges an App JWT for an installation access token scoped
// to the given "owner/name" repository.
func (a *AppAuth) Token(repo string) (string, error) {
	signed, err := a.mintJWT()
	if err != nil {
		return "", err
	}
	installationID, err := a.installationID(signed, repo)
	if err != nil {
		return "", err
	}
	return a.installationToken(signed, installationID)
}

func (a *AppAuth) mintJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(a.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse app private key: %w", err)
	}
	appID, err := strconv.ParseInt(a.AppID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid app id %q: %w", a.AppID, err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    strconv.FormatInt(appID, 10),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign app JWT: %w", err)
	}
	return signed, nil
}

func (a *AppAuth) installationID(jwtToken, repo string) (int64, error) {
	owner, name, ok := intent.SplitRepo(repo)
	if !ok {
		return 0, fmt.Errorf("invalid repo slug %q (expected owner/name)", repo)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/installation", a.apiBase(), owner, name)
	var result struct {
		ID int64 `json:"id"`
	}
	if err := a.appRequest("GET", url, jwtToken, http.StatusOK, &result); err != nil {
		return 0, err
	}
	return result.ID, nil
}

func (a *AppAuth) installationToken(jwtToken string, installationID int64) (string, error) {
	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", a.apiBase(), installationID)
	var result struct {
		Token string `json:"token"`
	}
	if err := a.appRequest("POST", url, jwtToken, http.StatusCreated, &result); err != nil {
		return "", err
	}
	return result.Token, nil
}

func (a *AppAuth) appRequest(method, url, jwtToken string, wantStatus int, out any) error {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return fmt.Errorf("build app auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("app auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("app auth API error: %d - %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode app auth response: %w", err)
	}
	return nil
}

var _ TokenProvider = (*AppAuth)(nil)
