// Package launch starts job programs on local or remote hosts. A job is a
// fixed set of tasks; each host contributes a contiguous rank range and
// every task is handed its rank and the job size on the command line.
package launch

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/pariolab/pario/internal/config"
)

// Runner executes one program invocation on some host, streaming its
// output as it runs.
type Runner interface {
	RunStreaming(cmd string, args []string, stdout, stderr io.Writer) error
}

// joinCommand renders a command line safe to hand to a remote shell.
func joinCommand(cmd string, args []string) string {
	var b strings.Builder
	b.WriteString(shellEscape(cmd))
	for _, arg := range args {
		b.WriteByte(' ')
		b.WriteString(shellEscape(arg))
	}
	return b.String()
}

func shellEscape(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

// LocalRunner executes on this host.
type LocalRunner struct{}

func (LocalRunner) RunStreaming(cmd string, args []string, stdout, stderr io.Writer) error {
	command := exec.Command(cmd, args...)
	command.Stdout = stdout
	command.Stderr = stderr
	return command.Run()
}

// SSHRunner executes over an SSH session described by one job host entry.
type SSHRunner struct {
	Host    config.HostConfig
	Timeout time.Duration
}

func (r SSHRunner) RunStreaming(cmd string, args []string, stdout, stderr io.Writer) error {
	client, err := r.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr
	return session.Run(joinCommand(cmd, args))
}

func (r SSHRunner) dial() (*ssh.Client, error) {
	host := strings.TrimSpace(r.Host.Host)
	if host == "" {
		return nil, fmt.Errorf("launch: ssh host is required")
	}
	port := r.Host.Port
	if port == "" {
		port = "22"
	}
	address := net.JoinHostPort(host, port)

	cfg, err := r.clientConfig()
	if err != nil {
		return nil, err
	}

	if r.Timeout <= 0 {
		return ssh.Dial("tcp", address, cfg)
	}
	conn, err := net.DialTimeout("tcp", address, r.Timeout)
	if err != nil {
		return nil, err
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(clientConn, chans, reqs), nil
}

func (r SSHRunner) clientConfig() (*ssh.ClientConfig, error) {
	if r.Host.User == "" {
		return nil, fmt.Errorf("launch: ssh user is required")
	}
	if r.Host.KeyPath == "" {
		return nil, fmt.Errorf("launch: ssh key path is required")
	}
	key, err := os.ReadFile(r.Host.KeyPath)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, err
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if !r.Host.InsecureHostKey {
		path := strings.TrimSpace(r.Host.KnownHostsPath)
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("launch: known hosts path not set and home dir unavailable")
			}
			path = filepath.Join(home, ".ssh", "known_hosts")
		}
		hostKeys, err = knownhosts.New(path)
		if err != nil {
			return nil, err
		}
	}

	return &ssh.ClientConfig{
		User:            r.Host.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         r.Timeout,
	}, nil
}
