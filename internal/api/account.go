package api

import (
	"context"
	"net/http"
	"time"

	"stridelink/pkg/types"
)

// LoginRequest carries the credential pair for /api/auth/login.
type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

// RegisterRequest carries a new account for /api/auth/register.
type RegisterRequest struct {
	UserID      string `json:"user_id"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Profile is the server-side user profile, points included.
type Profile struct {
	UserID       string  `json:"user_id"`
	DisplayName  string  `json:"display_name"`
	Role         string  `json:"role"`
	Height       float64 `json:"height"`
	Weight       float64 `json:"weight"`
	RunningLevel string  `json:"running_level"`
	Goal         string  `json:"goal"`
	Points       int     `json:"points"`
}

// ProfileUpdate is the writable subset of Profile.
type ProfileUpdate struct {
	Height       float64 `json:"height"`
	Weight       float64 `json:"weight"`
	RunningLevel string  `json:"running_level"`
	Goal         string  `json:"goal"`
}

// LeaderboardEntry is one row of the points ranking.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
}

// ScheduleItem is one planned training slot.
type ScheduleItem struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Location string    `json:"location"`
}

// RiskReport is the injury-risk analysis derived from recent records.
type RiskReport struct {
	Level       string    `json:"level"`
	Summary     string    `json:"summary"`
	Factors     []string  `json:"factors"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Login exchanges credentials for a session token. The caller persists
// the returned credentials via the local store.
func (c *Client) Login(ctx context.Context, userID, password string) (*types.Credentials, error) {
	var creds types.Credentials
	err := c.do(ctx, http.MethodPost, "/api/auth/login", LoginRequest{UserID: userID, Password: password}, &creds)
	if err != nil {
		return nil, err
	}
	c.SetToken(creds.Token)
	return &creds, nil
}

// Register creates a new account. The user still logs in afterwards.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/api/auth/register", req, nil)
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile writes the editable profile fields.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	return c.do(ctx, http.MethodPut, "/api/profile", update, nil)
}

// Leaderboard returns the points ranking.
func (c *Client) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Schedule returns the user's upcoming training slots.
func (c *Client) Schedule(ctx context.Context) ([]ScheduleItem, error) {
	var items []ScheduleItem
	if err := c.do(ctx, http.MethodGet, "/api/schedule", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// RiskAnalysis returns the injury-risk report for the user.
func (c *Client) RiskAnalysis(ctx context.Context) (*RiskReport, error) {
	var report RiskReport
	if err := c.do(ctx, http.MethodGet, "/api/risk-analysis", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SubmitRunRecord uploads one finished run.
func (c *Client) SubmitRunRecord(ctx context.Context, record types.RunRecordSnapshot) error {
	return c.do(ctx, http.MethodPost, "/api/run-records", record, nil)
}
