package main

import (
	"flag"
	"log"

	"stadiumtix/internal/validation"
)

func main() {
	var baseURL, username, password string
	var stadiumID int64
	flag.StringVar(&baseURL, "url", "http://localhost:8081", "Base URL for API validation")
	flag.Int64Var(&stadiumID, "stadium", 1, "Stadium ID to validate against")
	flag.StringVar(&username, "admin-user", "", "Admin username for /api/admin routes")
	flag.StringVar(&password, "admin-password", "", "Admin password for /api/admin routes")
	flag.Parse()

	log.Printf("Starting API validation against: %s", baseURL)

	validator := validation.NewSpecValidator(baseURL, stadiumID).WithAdmin(username, password)
	if err := validator.ValidateAll(); err != nil {
		log.Fatalf("❌ Валидация не пройдена: %v", err)
	}

	log.Println("✅ Валидация успешно пройдена!")
}
