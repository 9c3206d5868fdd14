package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"accessadmin.com/accessadmin/security"
	"github.com/joho/godotenv"
)

// createtoken issues an operator token for the sync admin API, signed with
// SIGNING_SECRET.
func main() {
	godotenv.Load()

	userID := flag.Int("id", 1, "operator user id")
	userName := flag.String("user", "operator", "operator user name")
	email := flag.String("email", "", "operator email")
	expires := flag.Duration("expires", 8*time.Hour, "token lifetime")
	flag.Parse()

	operator := &security.Operator{UserID: *userID, UserName: *userName, Email: *email, Provider: "cli"}
	token, err := security.CreateIdentityToken(operator, os.Getenv("SIGNING_SECRET"), *expires)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
