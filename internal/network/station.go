// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package network

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultActivateTimeout bounds how long nmcli waits for an activation.
const DefaultActivateTimeout = 30 * time.Second

// IfConfig is the address information of the wireless interface.
type IfConfig struct {
	IP      net.IP
	Netmask net.IPMask
}

func (c IfConfig) String() string {
	if c.IP == nil {
		return "('0.0.0.0', '0.0.0.0')"
	}
	return fmt.Sprintf("('%s', '%s')", c.IP, net.IP(c.Netmask))
}

// Station is the wireless association client.
type Station interface {
	Active(on bool) error
	IsConnected() bool
	Connect(name, secret string) error
	IfConfig() (IfConfig, error)
}

// NMStation drives a wireless interface through NetworkManager's nmcli.
type NMStation struct {
	Interface       string
	ActivateTimeout time.Duration

	run func(ctx context.Context, args ...string) error
}

// NewNMStation returns a station bound to iface (e.g. "wlan0").
func NewNMStation(iface string) *NMStation {
	return &NMStation{Interface: iface, ActivateTimeout: DefaultActivateTimeout, run: runNmcli}
}

func runNmcli(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "nmcli", args...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "nmcli %s: %s", args[0], strings.TrimSpace(string(out)))
	}
	return nil
}

// Active switches the wifi radio on or off.
func (s *NMStation) Active(on bool) error {
	state := "off"
	if on {
		state = "on"
	}
	return s.run(context.Background(), "radio", "wifi", state)
}

// IsConnected reports whether the interface is up with an IPv4 address.
func (s *NMStation) IsConnected() bool {
	cfg, err := s.IfConfig()
	return err == nil && cfg.IP != nil
}

// Connect asks NetworkManager to associate with the named network. A
// profile named after the network is created on first use. The secret is
// handed to nmcli through a private passwd-file, never on its command line.
// Connect returns once activation has started; the caller polls
// IsConnected.
func (s *NMStation) Connect(name, secret string) error {
	if err := s.ensureProfile(name, secret != ""); err != nil {
		return err
	}

	args := []string{
		"--wait", strconv.Itoa(int(s.ActivateTimeout / time.Second)),
		"connection", "up", "id", name, "ifname", s.Interface,
	}
	passwdFile := ""
	if secret != "" {
		f, err := writePasswdFile(secret)
		if err != nil {
			return err
		}
		passwdFile = f
		args = append(args, "passwd-file", passwdFile)
	}

	go func() {
		if passwdFile != "" {
			defer os.Remove(passwdFile)
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.ActivateTimeout+5*time.Second)
		defer cancel()
		if err := s.run(ctx, args...); err != nil {
			log.Warnf("network: activating %q: %v", name, err)
		}
	}()
	return nil
}

func (s *NMStation) ensureProfile(name string, secured bool) error {
	ctx := context.Background()
	if err := s.run(ctx, "connection", "show", "id", name); err == nil {
		return nil
	}

	args := []string{"connection", "add", "type", "wifi", "con-name", name, "ifname", s.Interface, "ssid", name}
	if secured {
		// Agent-owned: the key is supplied by passwd-file on every activation.
		args = append(args, "wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk-flags", "1")
	}
	return s.run(ctx, args...)
}

// writePasswdFile stores secret in nmcli's passwd-file format in a file
// only the current user can read.
func writePasswdFile(secret string) (string, error) {
	f, err := os.CreateTemp("", "climate-node-wifi-*")
	if err != nil {
		return "", errors.Wrap(err, "create passwd-file")
	}
	_, err = fmt.Fprintf(f, "802-11-wireless-security.psk:%s\n", secret)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", errors.Wrap(err, "write passwd-file")
	}
	return f.Name(), nil
}

// IfConfig returns the first IPv4 address of the interface. A down
// interface or one without IPv4 yields an empty IfConfig.
func (s *NMStation) IfConfig() (IfConfig, error) {
	iface, err := net.InterfaceByName(s.Interface)
	if err != nil {
		return IfConfig{}, errors.Wrapf(err, "interface %s", s.Interface)
	}
	if iface.Flags&net.FlagUp == 0 {
		return IfConfig{}, nil
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return IfConfig{}, errors.Wrapf(err, "addresses of %s", s.Interface)
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			mask := ipNet.Mask
			if len(mask) == net.IPv6len {
				mask = mask[12:]
			}
			return IfConfig{IP: ip4, Netmask: mask}, nil
		}
	}
	return IfConfig{}, nil
}
