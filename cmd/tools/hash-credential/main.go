// Command hash-credential prints a username:hash pair suitable for the
// server's -credential flag or the VIDEO_TRANSCODE_CREDENTIALS variable.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/nischay-chauhan/video-transcode/internal/auth"
)

func main() {
	var (
		username string
		password string
	)
	flag.StringVar(&username, "username", "", "Username for the credential")
	flag.StringVar(&password, "password", "", "Password to hash (omit to read from stdin)")
	flag.Parse()

	username = strings.TrimSpace(username)
	if username == "" {
		fatalf("--username is required")
	}
	if strings.Contains(username, ":") || strings.Contains(username, ",") {
		fatalf("username must not contain ':' or ','")
	}
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			fatalf("read password: %v", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fatalf("hash password: %v", err)
	}
	fmt.Printf("%s:%s\n", username, hash)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
