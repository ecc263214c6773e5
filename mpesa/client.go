// Package mpesa реализует клиент Daraja API Safaricom: получение access
// token, инициацию STK push, запрос статуса транзакции и платёжные ссылки.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/duka/domain"
)

const (
	// SandboxBaseURL — песочница Safaricom.
	SandboxBaseURL = "https://sandbox.safaricom.co.ke"

	defaultTimeout = 15 * time.Second
	// tokenSafetyMargin — за сколько до истечения токен считается протухшим.
	tokenSafetyMargin = 30 * time.Second
	// linkTTL — срок жизни платёжной ссылки.
	linkTTL = 24 * time.Hour
)

// Config задаёт учётные данные мерчанта и адреса шлюза.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	// ShortCode — paybill-номер мерчанта (BusinessShortCode).
	ShortCode string
	// Passkey выдаётся Safaricom для Lipa Na M-Pesa Online.
	Passkey string
	// CallbackURL передаётся шлюзу в каждом STK-запросе.
	CallbackURL string
	// LinkBaseURL — префикс генерируемых платёжных ссылок.
	LinkBaseURL string
	Timeout     time.Duration
}

// SandboxConfig возвращает конфигурацию для песочницы с тестовым shortcode.
func SandboxConfig(consumerKey, consumerSecret string) Config {
	return Config{
		BaseURL:        SandboxBaseURL,
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		ShortCode:      "174379",
		Passkey:        "bfb279f9aa9bdbcf158e97dd71a467cd2e0c893059b10f78e6b72ada1ed2c919",
		Timeout:        defaultTimeout,
	}
}

// Client — потокобезопасный клиент шлюза. Access token кэшируется на срок
// его жизни; конкурентные обновления схлопываются в один запрос.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *log.Entry

	tokens *tokenCache
	sf     singleflight.Group
	now    func() time.Time
}

// NewClient создаёт клиент шлюза с таймаутом из конфигурации.
func NewClient(cfg Config, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.New().WithField("component", "mpesa")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxBaseURL
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		tokens: newTokenCache(),
		now:    time.Now,
	}
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        string `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
}

// InitiateCharge отправляет STK push на телефон клиента. Сумма передаётся
// целыми шиллингами: шлюз не принимает дробные значения.
func (c *Client) InitiateCharge(ctx context.Context, req domain.ChargeRequest) (domain.ChargeHandle, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return domain.ChargeHandle{}, err
	}

	timestamp := c.now().UTC().Format("20060102150405")
	phone := FormatPhone(req.Phone)
	payload := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            WholeAmount(req.AmountMinor),
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   req.Description,
	}

	var resp stkPushResponse
	if err := c.postJSON(ctx, "stk_push", "/mpesa/stkpush/v1/processrequest", token, payload, &resp); err != nil {
		return domain.ChargeHandle{}, err
	}
	if resp.ResponseCode != "0" {
		return domain.ChargeHandle{}, &domain.GatewayError{
			Op:        "stk_push",
			Transient: false,
			Err:       fmt.Errorf("gateway rejected request: code=%s desc=%s", resp.ResponseCode, resp.ResponseDescription),
		}
	}

	c.logger.WithFields(log.Fields{
		"checkout_request_id": resp.CheckoutRequestID,
		"reference":           req.Reference,
	}).Info("stk push accepted")

	return domain.ChargeHandle{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Description:       resp.ResponseDescription,
	}, nil
}

// QueryStatus запрашивает статус ранее инициированной транзакции.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (domain.ChargeStatus, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return domain.ChargeStatus{}, err
	}

	timestamp := c.now().UTC().Format("20060102150405")
	payload := stkQueryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var resp stkQueryResponse
	if err := c.postJSON(ctx, "status_query", "/mpesa/stkpushquery/v1/query", token, payload, &resp); err != nil {
		return domain.ChargeStatus{}, err
	}

	return domain.ChargeStatus{
		CheckoutRequestID: resp.CheckoutRequestID,
		ResultCode:        resp.ResultCode,
		ResultDesc:        resp.ResultDesc,
	}, nil
}

// GenerateLink создаёт платёжную ссылку со сроком жизни 24 часа. Ссылка
// обслуживается фронтом мерчанта, шлюз в генерации не участвует.
func (c *Client) GenerateLink(_ context.Context, req domain.LinkRequest) (domain.LinkHandle, error) {
	base := c.cfg.LinkBaseURL
	if base == "" {
		return domain.LinkHandle{}, &domain.GatewayError{
			Op:        "payment_link",
			Transient: false,
			Err:       fmt.Errorf("link base url is not configured"),
		}
	}

	id := uuid.NewString()
	return domain.LinkHandle{
		URL:           base + "/pay/" + id,
		TransactionID: id,
		ExpiresAt:     c.now().UTC().Add(linkTTL),
	}, nil
}

// postJSON выполняет авторизованный POST и раскладывает ответ в out.
func (c *Client) postJSON(ctx context.Context, op, path, token string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.GatewayError{Op: op, Transient: false, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return &domain.GatewayError{Op: op, Transient: false, Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// Сетевые ошибки и таймауты — временные, вызывающая сторона может повторить.
		return &domain.GatewayError{Op: op, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &domain.GatewayError{Op: op, Transient: true, Err: err}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return &domain.GatewayError{
			Op:        op,
			Transient: true,
			Err:       fmt.Errorf("gateway returned %d: %s", resp.StatusCode, raw),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.GatewayError{
			Op:        op,
			Transient: false,
			Err:       fmt.Errorf("gateway returned %d: %s", resp.StatusCode, raw),
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.GatewayError{Op: op, Transient: false, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// password кодирует shortcode+passkey+timestamp по правилам Lipa Na M-Pesa.
func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	// Daraja отдаёт expires_in строкой.
	ExpiresIn string `json:"expires_in"`
}

// accessToken возвращает закэшированный токен или обновляет его. Все
// конкурентные обновления схлопываются в один запрос через singleflight.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if token, ok := c.tokens.get(c.now()); ok {
		return token, nil
	}

	v, err, _ := c.sf.Do("token", func() (any, error) {
		// Пока мы ждали своей очереди, токен мог обновиться.
		if token, ok := c.tokens.get(c.now()); ok {
			return token, nil
		}
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", &domain.GatewayError{Op: "auth", Transient: false, Err: err}
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	httpReq.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &domain.GatewayError{Op: "auth", Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &domain.GatewayError{
			Op:        "auth",
			Transient: resp.StatusCode >= http.StatusInternalServerError,
			Err:       fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, raw),
		}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &domain.GatewayError{Op: "auth", Transient: false, Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return "", &domain.GatewayError{Op: "auth", Transient: false, Err: fmt.Errorf("empty access token in response")}
	}

	ttl := 3599 * time.Second
	if secs, convErr := strconv.Atoi(tr.ExpiresIn); convErr == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	c.tokens.put(tr.AccessToken, c.now().Add(ttl-tokenSafetyMargin))

	c.logger.WithField("ttl", ttl).Debug("access token refreshed")
	return tr.AccessToken, nil
}
