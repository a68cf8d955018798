// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package connector

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/apex/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/staranto/cofgo/internal/errs"
)

const sshDialTimeout = 15 * time.Second

// Tunnel forwards a local port to an address behind an SSH jump host.
type Tunnel struct {
	client   *ssh.Client
	listener net.Listener
	remote   string

	wg   sync.WaitGroup
	once sync.Once
}

// OpenTunnel connects to the jump host jump (host:port) and starts
// forwarding 127.0.0.1:<random port> to remote as seen from the jump host.
func OpenTunnel(jump, remote string, c SSHConfig) (*Tunnel, error) {
	auth, err := authMethods(c)
	if err != nil {
		return nil, err
	}
	hostKey := c.HostKeyCallback
	if hostKey == nil {
		if hostKey, err = knownHostsCallback(); err != nil {
			return nil, err
		}
	}

	client, err := ssh.Dial("tcp", jump, &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         sshDialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ssh %s: %w", errs.ErrConnection, jump, err)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: tunnel listener: %w", errs.ErrConnection, err)
	}

	t := &Tunnel{client: client, listener: l, remote: remote}
	t.wg.Add(1)
	go t.serve()

	log.WithFields(log.Fields{"jump": jump, "remote": remote, "local": l.Addr().String()}).Debug("ssh tunnel open")
	return t, nil
}

// Addr returns the local end of the tunnel.
func (t *Tunnel) Addr() (string, int) {
	a := t.listener.Addr().(*net.TCPAddr)
	return a.IP.String(), a.Port
}

// Close stops forwarding and closes the SSH connection.
func (t *Tunnel) Close() error {
	var err error
	t.once.Do(func() {
		err = errors.Join(t.listener.Close(), t.client.Close())
		t.wg.Wait()
	})
	return err
}

func (t *Tunnel) serve() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			return
		}
		go t.forward(local)
	}
}

func (t *Tunnel) forward(local net.Conn) {
	defer local.Close()

	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		log.WithError(err).Warnf("tunnel dial %s", t.remote)
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2) //nolint:mnd
	go func() {
		_, _ = io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(local, remote)
		done <- struct{}{}
	}()
	<-done
}

// authMethods prefers the password, then the key file, then ~/.ssh/id_rsa.
func authMethods(c SSHConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if c.Password != "" {
		methods = append(methods, ssh.Password(c.Password))
	}

	key := c.KeyFile
	if key == "" && c.Password == "" {
		if home, err := os.UserHomeDir(); err == nil {
			key = filepath.Join(home, ".ssh", "id_rsa")
		}
	}
	if key != "" {
		b, err := os.ReadFile(key)
		if err != nil {
			return nil, errs.Config("cannot read ssh key %q: %v", key, err)
		}
		signer, err := ssh.ParsePrivateKey(b)
		if err != nil {
			return nil, errs.Config("cannot parse ssh key %q: %v", key, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if len(methods) == 0 {
		return nil, errs.Config("ssh needs a password or a key")
	}
	return methods, nil
}

// knownHostsCallback verifies the jump host against ~/.ssh/known_hosts. A
// missing file is an error; the host key is never skipped silently.
func knownHostsCallback() (ssh.HostKeyCallback, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errs.Config("cannot locate ~/.ssh/known_hosts: %v", err)
	}
	path := filepath.Join(home, ".ssh", "known_hosts")
	if _, err := os.Stat(path); err != nil {
		return nil, errs.Config("cannot verify the ssh jump host, %q is missing (add the host with ssh-keyscan)", path)
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, errs.Config("cannot load %q: %v", path, err)
	}
	return cb, nil
}

func jumpAddr(host string, port int) string {
	if port <= 0 {
		port = 22
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
