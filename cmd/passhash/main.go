// Command passhash prints a bcrypt hash suitable for GATE_PASSPHRASE, so the plain
// passphrase never has to live in the environment.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/zewo/opsdash/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	hash, err := hashFrom(bufio.NewReader(os.Stdin), *cost)
	if err != nil {
		logger.Fatalf("passhash: %v", err)
	}
	fmt.Println(hash)
}

func hashFrom(r *bufio.Reader, cost int) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	pass := strings.TrimRight(line, "\r\n")
	if pass == "" {
		return "", fmt.Errorf("empty passphrase")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pass), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
