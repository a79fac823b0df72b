package wifi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	c "lautenbacher.net/capraclock/config"
)

// 802.11 limits. Values outside them are tried anyway, most access points
// will just refuse them.
const (
	MaxSSIDLength     = 32
	MinPasswordLength = 8
	MaxPasswordLength = 63
)

// ErrNoNetworks is returned by Join when every network slot is unused.
var ErrNoNetworks = errors.New("no WiFi network configured")

// Candidate is one network to try together with the password to use.
type Candidate struct {
	SSID     string
	Password string
}

// Connector associates with a single network. Implementations should return
// promptly once ctx is done.
type Connector interface {
	Connect(ctx context.Context, ssid, password string) error
}

// Candidates pairs every configured network with the shared password, in
// priority order. Unused (empty) slots are left out.
func Candidates(conf *c.Config) []Candidate {
	pass := conf.SharedPassword()
	ssids := conf.NetworkCandidates()
	ret := make([]Candidate, 0, len(ssids))
	for _, ssid := range ssids {
		if ssid == "" {
			continue
		}
		ret = append(ret, Candidate{SSID: ssid, Password: pass})
	}
	return ret
}

// Problems lists what about cand is unlikely to work with a WPA2 network.
// None of it stops Join from trying.
func (cand Candidate) Problems() []string {
	var problems []string
	if len(cand.SSID) > MaxSSIDLength {
		problems = append(problems, fmt.Sprintf("SSID is %d bytes long, 802.11 allows at most %d", len(cand.SSID), MaxSSIDLength))
	}
	if l := len(cand.Password); l != 0 && (l < MinPasswordLength || l > MaxPasswordLength) {
		problems = append(problems, fmt.Sprintf("password has %d characters, WPA2 expects %d to %d", l, MinPasswordLength, MaxPasswordLength))
	}
	return problems
}

// Join tries each candidate once, in order, and returns the first one the
// connector accepts. When all of them fail, the returned error carries the
// error of every attempt.
func Join(ctx context.Context, conn Connector, conf *c.Config) (Candidate, error) {
	candidates := Candidates(conf)
	if len(candidates) == 0 {
		return Candidate{}, ErrNoNetworks
	}

	var errs []error
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		for _, problem := range cand.Problems() {
			slog.Warn("Suspicious WiFi settings", "ssid", cand.SSID, "problem", problem)
		}
		slog.Info("Connecting to WiFi", "ssid", cand.SSID, "open", cand.Password == "")
		err := conn.Connect(ctx, cand.SSID, cand.Password)
		if err == nil {
			slog.Info("Connected to WiFi", "ssid", cand.SSID)
			return cand, nil
		}
		slog.Warn("WiFi connection failed", "ssid", cand.SSID, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", cand.SSID, err))
	}
	return Candidate{}, fmt.Errorf("could not join any WiFi network: %w", errors.Join(errs...))
}
