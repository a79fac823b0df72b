package wifi

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	c "lautenbacher.net/capraclock/config"
)

type attempt struct {
	ssid     string
	password string
}

type mockConnector struct {
	attempts []attempt
	accept   map[string]bool
	onCall   func()
}

func (m *mockConnector) Connect(_ context.Context, ssid, password string) error {
	m.attempts = append(m.attempts, attempt{ssid, password})
	if m.onCall != nil {
		m.onCall()
	}
	if m.accept[ssid] {
		return nil
	}
	return errors.New("association rejected")
}

func newConfig(t *testing.T, yml string) *c.Config {
	t.Helper()
	conf, err := c.Parse([]byte(yml))
	require.NoError(t, err)
	return conf
}

const homeNetworks = "WiFi:\n  SSIDs: [\"home1\", \"\", \"home2\"]\n  Password: \"secret\"\n"

func TestCandidates(t *testing.T) {
	conf := newConfig(t, homeNetworks)

	assert.Equal(t, []Candidate{
		{SSID: "home1", Password: "secret"},
		{SSID: "home2", Password: "secret"},
	}, Candidates(conf))
}

func TestCandidates_SharedPasswordAppliesToAll(t *testing.T) {
	conf := newConfig(t, "WiFi:\n  SSIDs: [\"a\", \"b\", \"c\"]\n  Password: \"first123\"\n")
	changed := conf.WithPassword("second12")

	for _, cand := range Candidates(changed) {
		assert.Equal(t, "second12", cand.Password, "candidate %s", cand.SSID)
	}
}

func TestCandidates_Defaults(t *testing.T) {
	assert.Empty(t, Candidates(c.Default()), "the two default slots are unused")
}

func TestJoin_SkipsEmptySlotsInOrder(t *testing.T) {
	conf := newConfig(t, homeNetworks)
	conn := &mockConnector{accept: map[string]bool{"home2": true}}

	got, err := Join(context.Background(), conn, conf)
	require.NoError(t, err)

	assert.Equal(t, Candidate{SSID: "home2", Password: "secret"}, got)
	assert.Equal(t, []attempt{{"home1", "secret"}, {"home2", "secret"}}, conn.attempts)
}

func TestJoin_HomeNetworksWithSharedPassword(t *testing.T) {
	conf, err := c.Parse([]byte(homeNetworks))
	require.NoError(t, err, "a short password and empty slots must load")
	conn := &mockConnector{}

	_, err = Join(context.Background(), conn, conf)
	require.Error(t, err)
	assert.Equal(t, []attempt{{"home1", "secret"}, {"home2", "secret"}}, conn.attempts,
		"home1 then home2 with the shared password, the empty slot skipped")
}

func TestJoin_TriesUnusualSettings(t *testing.T) {
	long := strings.Repeat("x", MaxSSIDLength+8)
	conf := newConfig(t, "WiFi:\n  SSIDs: [a, b, c, d, e, f, g, h, i, \""+long+"\"]\n  Password: \"abc\"\n")
	conn := &mockConnector{accept: map[string]bool{long: true}}

	got, err := Join(context.Background(), conn, conf)
	require.NoError(t, err)
	assert.Equal(t, long, got.SSID)
	assert.Len(t, conn.attempts, 10, "every slot is tried, no matter how many there are")
}

func TestCandidateProblems(t *testing.T) {
	assert.Empty(t, Candidate{SSID: "home1", Password: "secret12"}.Problems())
	assert.Empty(t, Candidate{SSID: "cafe"}.Problems(), "open networks are fine")

	problems := Candidate{SSID: strings.Repeat("x", MaxSSIDLength+1), Password: "secret"}.Problems()
	require.Len(t, problems, 2)
	assert.Contains(t, problems[0], "SSID is 33 bytes long")
	assert.Contains(t, problems[1], "password has 6 characters")

	problems = Candidate{SSID: "home1", Password: strings.Repeat("p", MaxPasswordLength+1)}.Problems()
	require.Len(t, problems, 1)
}

func TestJoin_StopsAtFirstSuccess(t *testing.T) {
	conf := newConfig(t, "WiFi:\n  SSIDs: [\"home1\", \"home2\"]\n")
	conn := &mockConnector{accept: map[string]bool{"home1": true, "home2": true}}

	got, err := Join(context.Background(), conn, conf)
	require.NoError(t, err)
	assert.Equal(t, "home1", got.SSID)
	assert.Equal(t, "", got.Password, "an empty password means an open network")
	assert.Len(t, conn.attempts, 1)
}

func TestJoin_AllFail(t *testing.T) {
	conf := newConfig(t, "WiFi:\n  SSIDs: [\"home1\", \"home2\"]\n")
	conn := &mockConnector{}

	_, err := Join(context.Background(), conn, conf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "home1: association rejected")
	assert.Contains(t, err.Error(), "home2: association rejected")
	assert.Len(t, conn.attempts, 2)
}

func TestJoin_NoNetworks(t *testing.T) {
	conn := &mockConnector{}

	_, err := Join(context.Background(), conn, c.Default())
	assert.ErrorIs(t, err, ErrNoNetworks)
	assert.Empty(t, conn.attempts)
}

func TestJoin_Cancelled(t *testing.T) {
	conf := newConfig(t, "WiFi:\n  SSIDs: [\"home1\", \"home2\"]\n")
	ctx, cancel := context.WithCancel(context.Background())
	conn := &mockConnector{onCall: cancel}

	_, err := Join(ctx, conn, conf)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, conn.attempts, 1, "no attempt may start after cancellation")
}

func TestNmcliConnector_Args(t *testing.T) {
	n := &NmcliConnector{}
	assert.Equal(t, []string{"device", "wifi", "connect", "home"}, n.args("home", ""))

	n.Interface = "wlan0"
	assert.Equal(t,
		[]string{"--ask", "device", "wifi", "connect", "home", "ifname", "wlan0"},
		n.args("home", "secret"))
}

func TestNmcliConnector_PasswordOnStdin(t *testing.T) {
	n := &NmcliConnector{Interface: "wlan0"}
	cmd := n.command(context.Background(), "home", "secret")

	for _, arg := range cmd.Args {
		assert.NotContains(t, arg, "secret", "the password must not be visible in the process list")
	}
	require.NotNil(t, cmd.Stdin)
	stdin, err := io.ReadAll(cmd.Stdin)
	require.NoError(t, err)
	assert.Equal(t, "secret\n", string(stdin))

	assert.Nil(t, n.command(context.Background(), "cafe", "").Stdin, "open networks need no input")
}

func TestNmcliConnector_MissingBinary(t *testing.T) {
	n := &NmcliConnector{Binary: "/nonexistent/nmcli"}
	err := n.Connect(context.Background(), "home", "secret12")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret12")
}
