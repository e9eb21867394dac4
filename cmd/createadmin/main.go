package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"app/internal/domain/model"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// 管理者ユーザーを対話で作る。デプロイ後に一度だけ叩く想定
func main() {
	_ = godotenv.Load()

	gormDB, err := db.Connect()
	if err != nil {
		panic(err)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Email: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		panic(err)
	}
	email = strings.TrimSpace(email)

	fmt.Print("Full name: ")
	fullName, err := reader.ReadString('\n')
	if err != nil {
		panic(err)
	}
	fullName = strings.TrimSpace(fullName)

	fmt.Print("Password: ")
	password, err := reader.ReadString('\n')
	if err != nil {
		panic(err)
	}
	password = strings.TrimSpace(password)

	if email == "" || password == "" {
		fmt.Fprintln(os.Stderr, "email and password are required")
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 13)
	if err != nil {
		panic(err)
	}

	users := infraRepo.NewUserGormRepository(gormDB)
	ctx := context.Background()

	exists, err := users.ExistsByEmail(ctx, email)
	if err != nil {
		panic(err)
	}
	if exists {
		fmt.Fprintf(os.Stderr, "user %s already exists\n", email)
		os.Exit(1)
	}

	u := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Active:       true,
		IsAdmin:      true,
	}
	if err := users.Create(ctx, u); err != nil {
		panic(err)
	}

	fmt.Printf("admin user %s created (id=%d)\n", u.Email, u.ID)
}
