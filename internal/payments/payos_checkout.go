package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/hospital-booking/pkg/logging"
)

// ProviderPayOS names checkouts created through PayOS.
const ProviderPayOS = "payos"

// PayOS rejects descriptions longer than this.
const payOSMaxDescription = 25

var payOSTracer = otel.Tracer("hospital.internal.payments.payos")

// PayOSCheckoutService creates PayOS payment requests.
type PayOSCheckoutService struct {
	clientID    string
	apiKey      string
	checksumKey string
	baseURL     string
	linkTTL     time.Duration
	httpClient  *http.Client
	logger      *logging.Logger
	now         func() time.Time
}

// NewPayOSCheckoutService creates a PayOS client. Missing credentials are
// reported per call as ErrNotConfigured.
func NewPayOSCheckoutService(clientID, apiKey, checksumKey string, logger *logging.Logger) *PayOSCheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	return &PayOSCheckoutService{
		clientID:    strings.TrimSpace(clientID),
		apiKey:      strings.TrimSpace(apiKey),
		checksumKey: strings.TrimSpace(checksumKey),
		baseURL:     "https://api-merchant.payos.vn",
		linkTTL:     15 * time.Minute,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		logger:      logger,
		now:         time.Now,
	}
}

// WithBaseURL overrides the PayOS API base URL (for testing).
func (s *PayOSCheckoutService) WithBaseURL(baseURL string) *PayOSCheckoutService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithTimeout bounds each HTTP call.
func (s *PayOSCheckoutService) WithTimeout(d time.Duration) *PayOSCheckoutService {
	if d > 0 {
		s.httpClient.Timeout = d
	}
	return s
}

// WithLinkTTL sets how long the created payment link stays payable.
func (s *PayOSCheckoutService) WithLinkTTL(d time.Duration) *PayOSCheckoutService {
	if d > 0 {
		s.linkTTL = d
	}
	return s
}

func (s *PayOSCheckoutService) Name() string { return ProviderPayOS }

// Configured reports whether every credential is present.
func (s *PayOSCheckoutService) Configured() bool {
	return s.clientID != "" && s.apiKey != "" && s.checksumKey != ""
}

type payOSItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type payOSPaymentRequest struct {
	OrderCode   int64       `json:"orderCode"`
	Amount      int64       `json:"amount"`
	Description string      `json:"description"`
	BuyerName   string      `json:"buyerName,omitempty"`
	BuyerEmail  string      `json:"buyerEmail,omitempty"`
	BuyerPhone  string      `json:"buyerPhone,omitempty"`
	Items       []payOSItem `json:"items"`
	CancelURL   string      `json:"cancelUrl"`
	ReturnURL   string      `json:"returnUrl"`
	ExpiredAt   int64       `json:"expiredAt"`
	Signature   string      `json:"signature"`
}

type payOSResponse struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data *struct {
		CheckoutURL   string `json:"checkoutUrl"`
		PaymentLinkID string `json:"paymentLinkId"`
	} `json:"data"`
}

// CreatePaymentLink implements CheckoutProvider for PayOS.
func (s *PayOSCheckoutService) CreatePaymentLink(ctx context.Context, params CheckoutParams) (*CheckoutResponse, error) {
	ctx, span := payOSTracer.Start(ctx, "payos.create_payment_request")
	defer span.End()
	span.SetAttributes(
		attribute.String("hospital.appointment_id", params.AppointmentID),
		attribute.Int64("hospital.amount", params.Amount),
	)

	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if params.Amount <= 0 {
		return nil, fmt.Errorf("payments: payos amount must be positive")
	}

	description := truncateRunes(strings.TrimSpace(params.Description), payOSMaxDescription)
	if description == "" {
		description = "Phi kham"
	}
	itemName := strings.TrimSpace(params.ServiceName)
	if itemName == "" {
		itemName = "Consultation"
	}

	body := payOSPaymentRequest{
		OrderCode:   params.OrderCode,
		Amount:      params.Amount,
		Description: description,
		BuyerName:   params.Payer.Name,
		BuyerEmail:  params.Payer.Email,
		BuyerPhone:  params.Payer.Phone,
		Items:       []payOSItem{{Name: itemName, Quantity: 1, Price: params.Amount}},
		CancelURL:   params.CancelURL,
		ReturnURL:   params.SuccessURL,
		ExpiredAt:   s.now().Add(s.linkTTL).Unix(),
	}
	body.Signature = PayOSSignature(s.checksumKey, body.Amount, body.CancelURL, body.Description, body.OrderCode, body.ReturnURL)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("payments: payos encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/payment-requests", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("payments: payos request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", s.clientID)
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("payments: payos http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("payments: payos api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed payOSResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("payments: payos decode: %w", err)
	}
	if parsed.Code != "00" || parsed.Data == nil || parsed.Data.CheckoutURL == "" {
		return nil, fmt.Errorf("payments: payos rejected request: code=%s desc=%s", parsed.Code, parsed.Desc)
	}

	s.logger.Info("payos payment link created", "appointment_id", params.AppointmentID, "order_code", params.OrderCode)
	return &CheckoutResponse{
		URL:        parsed.Data.CheckoutURL,
		ProviderID: parsed.Data.PaymentLinkID,
	}, nil
}

// PayOSSignature signs the fields PayOS verifies, sorted alphabetically.
func PayOSSignature(checksumKey string, amount int64, cancelURL, description string, orderCode int64, returnURL string) string {
	data := fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
		amount, cancelURL, description, orderCode, returnURL)
	mac := hmac.New(sha256.New, []byte(checksumKey))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
