package wifi

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// NmcliConnector joins networks through NetworkManager's command line client.
// The password is handed over on stdin (nmcli --ask) so it never shows up in
// the process list.
type NmcliConnector struct {
	// Interface restricts the connection to a device, e.g. "wlan0". Empty
	// lets NetworkManager pick one.
	Interface string
	// Binary defaults to "nmcli".
	Binary string
}

func (n *NmcliConnector) args(ssid, password string) []string {
	var args []string
	if password != "" {
		args = append(args, "--ask")
	}
	args = append(args, "device", "wifi", "connect", ssid)
	if n.Interface != "" {
		args = append(args, "ifname", n.Interface)
	}
	return args
}

func (n *NmcliConnector) command(ctx context.Context, ssid, password string) *exec.Cmd {
	bin := n.Binary
	if bin == "" {
		bin = "nmcli"
	}
	cmd := exec.CommandContext(ctx, bin, n.args(ssid, password)...)
	if password != "" {
		cmd.Stdin = strings.NewReader(password + "\n")
	}
	return cmd
}

func (n *NmcliConnector) Connect(ctx context.Context, ssid, password string) error {
	cmd := n.command(ctx, ssid, password)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if password != "" {
			msg = strings.ReplaceAll(msg, password, "***")
		}
		return fmt.Errorf("%s failed: %w: %s", cmd.Path, err, msg)
	}
	return nil
}
