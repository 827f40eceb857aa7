package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ikkim/storefront-backend/pkg/util"
)

// Prints the bcrypt hash to put in ADMIN_API_KEY_HASH.
func main() {
	key := ""
	if len(os.Args) > 1 {
		key = os.Args[1]
	} else {
		fmt.Fprint(os.Stderr, "Admin API key: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatal("Failed to read key:", err)
		}
		key = line
	}

	key = strings.TrimSpace(key)
	if key == "" {
		log.Fatal("Usage: go run cmd/hashkey/main.go [api_key]")
	}

	hash, err := util.HashAPIKey(key)
	if err != nil {
		log.Fatal("Failed to hash key:", err)
	}
	fmt.Println(hash)
}
