package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"resumebuilder/internal/auth"
	"resumebuilder/internal/config"
	"resumebuilder/internal/database"
	"resumebuilder/internal/repository"
)

// admin creates an account with a generated password and prints it once.
func main() {
	var (
		email   = flag.String("email", "", "account email (required)")
		name    = flag.String("name", "", "display name (defaults to the email local part)")
		dbHost  = flag.String("db-host", "", "database host (default $DATABASE_HOST)")
		dbPort  = flag.Int("db-port", 0, "database port (default $DATABASE_PORT)")
		dbName  = flag.String("db-name", "", "database name (default $POSTGRES_DB)")
		dbUser  = flag.String("db-user", "", "database user (default $POSTGRES_USER)")
		dbPass  = flag.String("db-password", "", "database password (default $POSTGRES_PASSWORD)")
		sslMode = flag.String("db-sslmode", "", "database sslmode (default $DATABASE_SSLMODE)")
	)
	flag.Parse()

	addr := strings.TrimSpace(*email)
	if addr == "" || !strings.Contains(addr, "@") {
		log.Fatal("missing or invalid required flag: --email")
	}
	displayName := strings.TrimSpace(*name)
	if displayName == "" {
		displayName = addr[:strings.Index(addr, "@")]
	}

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	password, err := auth.GeneratePassword(24)
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	user := database.User{
		Name:         displayName,
		Email:        addr,
		PasswordHash: hashed,
	}
	if err := repository.NewUsers(db).Create(context.Background(), &user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			log.Fatalf("account %q already exists", addr)
		}
		log.Fatalf("create user: %v", err)
	}

	fmt.Println("Account created.")
	fmt.Printf("ID:       %d\n", user.ID)
	fmt.Printf("Email:    %s\n", user.Email)
	fmt.Printf("Password: %s\n", password)
	fmt.Println("The password is shown only once.")
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	host = firstNonEmpty(host, os.Getenv("DATABASE_HOST"), "localhost")
	name = firstNonEmpty(name, os.Getenv("POSTGRES_DB"), os.Getenv("DB_NAME"))
	user = firstNonEmpty(user, os.Getenv("POSTGRES_USER"), os.Getenv("DB_USER"))
	password = firstNonEmpty(password, os.Getenv("POSTGRES_PASSWORD"), os.Getenv("DB_PASSWORD"))
	sslmode = firstNonEmpty(sslmode, os.Getenv("DATABASE_SSLMODE"), "disable")

	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if port <= 0 {
		port = 5432
	}

	switch {
	case name == "":
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	case user == "":
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	case password == "":
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslmode,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
