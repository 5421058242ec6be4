// Package main prints the bcrypt hash of a password read from stdin, for seeding users.password_hash
// by hand.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/shopdesk/shopdesk/internal/auth"
)

func main() {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatalf("Failed to read password from stdin: %v", err)
	}
	hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	fmt.Println(hash)
}
