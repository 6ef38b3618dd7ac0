package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/didmybit/didmybit_server/config"
	"github.com/didmybit/didmybit_server/internal/pkg/jwt"
)

var (
	username = flag.String("username", "", "Username to issue the token for")
	hours    = flag.Int("hours", 0, "Token lifetime in hours (default: jwt.expire_hours)")
)

func main() {
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	expire := cfg.JWT.ExpireHours
	if *hours > 0 {
		expire = *hours
	}

	token, err := jwt.GenerateToken(*username, cfg.JWT.Secret, expire)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Println(token)
}
