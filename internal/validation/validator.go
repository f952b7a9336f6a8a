package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"stadiumtix/internal/models"
)

// SpecValidator - smoke-проверка HTTP контракта запущенного сервиса
type SpecValidator struct {
	baseURL   string
	stadiumID int64
	username  string
	password  string
	client    *http.Client
}

// NewSpecValidator создает новый валидатор
func NewSpecValidator(baseURL string, stadiumID int64) *SpecValidator {
	return &SpecValidator{
		baseURL:   baseURL,
		stadiumID: stadiumID,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAdmin sets the basic auth credentials used for /api/admin routes
func (v *SpecValidator) WithAdmin(username, password string) *SpecValidator {
	v.username = username
	v.password = password
	return v
}

// ValidateAll создает временный билет, проверяет на нем публичные и
// административные endpoints и удаляет его.
func (v *SpecValidator) ValidateAll() error {
	log.Println("Начинаю валидацию API...")

	// Неделя вперед, чтобы не упереться в cutoff
	date := time.Now().AddDate(0, 0, 7).Format(models.DateLayout)

	ticket, err := v.validateCatalog()
	if err != nil {
		return fmt.Errorf("catalog validation failed: %w", err)
	}
	defer v.cleanup(ticket.ID)

	if err := v.validateOffers(ticket, date); err != nil {
		return fmt.Errorf("offers validation failed: %w", err)
	}

	if err := v.validateReservations(ticket, date); err != nil {
		return fmt.Errorf("reservations validation failed: %w", err)
	}

	if err := v.validateOverrides(ticket, date); err != nil {
		return fmt.Errorf("overrides validation failed: %w", err)
	}

	log.Println("✅ Все endpoints прошли валидацию успешно!")
	return nil
}

func (v *SpecValidator) validateCatalog() (*models.TicketResponse, error) {
	log.Println("Проверяю каталог...")

	req := models.CreateTicketRequest{
		StadiumID:    v.stadiumID,
		Kind:         string(models.KindRegular),
		Name:         fmt.Sprintf("validation-%d", time.Now().UnixNano()),
		BasePrice:    decimal.NewFromInt(1000),
		BaseQuantity: 2,
		Weekdays:     []int{0, 1, 2, 3, 4, 5, 6},
	}

	var ticket models.TicketResponse
	if err := v.call(http.MethodPost, "/api/admin/tickets", req, http.StatusCreated, &ticket); err != nil {
		return nil, err
	}
	if ticket.ID == 0 {
		return nil, fmt.Errorf("POST /api/admin/tickets: expected non-zero ID")
	}

	var fetched models.TicketResponse
	if err := v.call(http.MethodGet, fmt.Sprintf("/api/admin/tickets/%d", ticket.ID), nil, http.StatusOK, &fetched); err != nil {
		return nil, err
	}
	if fetched.Name != req.Name {
		return nil, fmt.Errorf("GET /api/admin/tickets/%d: name mismatch", ticket.ID)
	}

	log.Println("✅ Каталог валиден")
	return &ticket, nil
}

func (v *SpecValidator) validateOffers(ticket *models.TicketResponse, date string) error {
	log.Println("Проверяю предложения...")

	var offers []models.Offer
	path := fmt.Sprintf("/api/stadiums/%d/offers?date=%s", v.stadiumID, date)
	if err := v.call(http.MethodGet, path, nil, http.StatusOK, &offers); err != nil {
		return err
	}
	found := false
	for _, o := range offers {
		if o.TicketID == ticket.ID {
			found = true
			if o.AvailableQuantity != ticket.BaseQuantity {
				return fmt.Errorf("GET %s: expected quantity %d, got %d", path, ticket.BaseQuantity, o.AvailableQuantity)
			}
		}
	}
	if !found {
		return fmt.Errorf("GET %s: created ticket is not offered", path)
	}

	var availability models.AvailabilityResponse
	path = fmt.Sprintf("/api/stadiums/%d/availability?date=%s", v.stadiumID, date)
	if err := v.call(http.MethodGet, path, nil, http.StatusOK, &availability); err != nil {
		return err
	}
	if !availability.Available {
		return fmt.Errorf("GET %s: expected available", path)
	}

	var days []models.CalendarDay
	path = fmt.Sprintf("/api/stadiums/%d/calendar?from=%s&days=3", v.stadiumID, date)
	if err := v.call(http.MethodGet, path, nil, http.StatusOK, &days); err != nil {
		return err
	}
	if len(days) != 3 {
		return fmt.Errorf("GET %s: expected 3 days, got %d", path, len(days))
	}

	log.Println("✅ Предложения валидны")
	return nil
}

func (v *SpecValidator) validateReservations(ticket *models.TicketResponse, date string) error {
	log.Println("Проверяю списание...")

	req := models.ReserveRequest{
		StadiumID: v.stadiumID,
		TicketID:  ticket.ID,
		Kind:      string(ticket.Kind),
		Date:      date,
		Quantity:  1,
	}

	var reserved models.ReserveResponse
	if err := v.call(http.MethodPost, "/api/reservations", req, http.StatusOK, &reserved); err != nil {
		return err
	}
	if !reserved.Reserved || reserved.Remaining != ticket.BaseQuantity-1 {
		return fmt.Errorf("POST /api/reservations: unexpected response %+v", reserved)
	}

	// Больше, чем осталось
	req.Quantity = ticket.BaseQuantity
	if err := v.call(http.MethodPost, "/api/reservations", req, http.StatusConflict, nil); err != nil {
		return err
	}

	req.Quantity = 0
	if err := v.call(http.MethodPost, "/api/reservations", req, http.StatusBadRequest, nil); err != nil {
		return err
	}

	log.Println("✅ Списание валидно")
	return nil
}

func (v *SpecValidator) validateOverrides(ticket *models.TicketResponse, date string) error {
	log.Println("Проверяю журнал по датам...")

	var override models.OverrideResponse
	path := fmt.Sprintf("/api/admin/overrides?stadium_id=%d&ticket_id=%d&kind=%s&date=%s",
		v.stadiumID, ticket.ID, ticket.Kind, date)
	if err := v.call(http.MethodGet, path, nil, http.StatusOK, &override); err != nil {
		return err
	}
	if override.InitialQuantity != ticket.BaseQuantity {
		return fmt.Errorf("GET %s: expected initial quantity %d, got %d", path, ticket.BaseQuantity, override.InitialQuantity)
	}

	log.Println("✅ Журнал валиден")
	return nil
}

func (v *SpecValidator) cleanup(ticketID int64) {
	if err := v.call(http.MethodDelete, fmt.Sprintf("/api/admin/tickets/%d", ticketID), nil, http.StatusNoContent, nil); err != nil {
		log.Printf("⚠️ Не удалось удалить тестовый билет %d: %v", ticketID, err)
	}
}

// call выполняет запрос, проверяет статус и при необходимости декодирует ответ в out
func (v *SpecValidator) call(method, path string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, v.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if v.username != "" {
		req.SetBasicAuth(v.username, v.password)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("%s %s: expected %d, got %d", method, path, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
	}
	return nil
}

// RunValidation запускает валидацию API
func RunValidation() {
	baseURL := "http://localhost:8081"
	if url := os.Getenv("VALIDATION_URL"); url != "" {
		baseURL = url
	}

	validator := NewSpecValidator(baseURL, 1).WithAdmin(os.Getenv("ADMIN_USERNAME"), os.Getenv("ADMIN_PASSWORD"))
	if err := validator.ValidateAll(); err != nil {
		log.Fatalf("❌ Валидация не пройдена: %v", err)
	}
}
