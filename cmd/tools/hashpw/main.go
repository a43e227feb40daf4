// Command hashpw prints an argon2id hash for ADMIN_PASSWORD_HASH.
//
//	go run ./cmd/tools/hashpw 'secret'
//	echo 'secret' | go run ./cmd/tools/hashpw
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/alexedwards/argon2id"
)

func main() {
	password, err := readPassword(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	fmt.Println(hash)
}

func readPassword(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password is empty")
	}
	return password, nil
}
