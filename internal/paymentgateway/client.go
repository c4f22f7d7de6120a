package paymentgateway

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/account-rental/internal"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	gw "github.com/frahmantamala/account-rental/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/account-rental/internal/signature"
)

const (
	SchemeRSA  = "rsa"
	SchemeHMAC = "hmac"

	defaultTimeout    = 15 * time.Second
	defaultSessionTTL = 24 * time.Hour
	tokenSafetyMargin = 30 * time.Second
)

type Config struct {
	BaseURL           string
	ClientID          string
	PartnerID         string
	ChannelID         string
	MerchantID        string
	StoreID           string
	TerminalID        string
	PartnerServiceID  string
	Currency          string
	PrivateKey        *rsa.PrivateKey
	ProviderPublicKey *rsa.PublicKey
	ClientSecret      string
	SigningScheme     string
	LegacyUserID      string
	LegacyPassword    string
	CallbackURL       string
	Timeout           time.Duration
	SessionTTL        time.Duration
	HTTPClient        *http.Client
	Now               func() time.Time
}

// ConfigFromApp decodes the key material carried in the application config.
func ConfigFromApp(cfg internal.PaymentConfig) (Config, error) {
	privPEM, err := internal.DecodePEM(cfg.PrivateKey)
	if err != nil {
		return Config{}, fmt.Errorf("private key: %w", err)
	}
	priv, err := signature.ParsePrivateKey(privPEM)
	if err != nil {
		return Config{}, fmt.Errorf("private key: %w", err)
	}
	pubPEM, err := internal.DecodePEM(cfg.ProviderKey)
	if err != nil {
		return Config{}, fmt.Errorf("provider public key: %w", err)
	}
	pub, err := signature.ParsePublicKey(pubPEM)
	if err != nil {
		return Config{}, fmt.Errorf("provider public key: %w", err)
	}

	return Config{
		BaseURL:           cfg.BaseURL,
		ClientID:          cfg.ClientID,
		PartnerID:         cfg.PartnerID,
		ChannelID:         cfg.ChannelID,
		MerchantID:        cfg.MerchantID,
		StoreID:           cfg.StoreID,
		TerminalID:        cfg.TerminalID,
		PartnerServiceID:  cfg.PartnerServiceID,
		Currency:          cfg.Currency,
		PrivateKey:        priv,
		ProviderPublicKey: pub,
		ClientSecret:      cfg.ClientSecret,
		SigningScheme:     cfg.SigningScheme,
		LegacyUserID:      cfg.LegacyUserID,
		LegacyPassword:    cfg.LegacyPassword,
		CallbackURL:       cfg.CallbackURL,
		Timeout:           cfg.Timeout,
	}, nil
}

type Client struct {
	cfg         Config
	httpClient  *http.Client
	signer      signature.RequestSigner
	tokenSigner *signature.AsymmetricSigner
	verifier    signature.NotificationVerifier
	legacy      signature.Legacy
	logger      *slog.Logger
	now         func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("payment gateway base url is required")
	}
	if cfg.PrivateKey == nil {
		return nil, errors.New("payment gateway private key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.Currency == "" {
		cfg.Currency = "IDR"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	tokenSigner := signature.NewAsymmetricSigner(cfg.PrivateKey)

	var signer signature.RequestSigner
	switch cfg.SigningScheme {
	case "", SchemeRSA:
		signer = tokenSigner
	case SchemeHMAC:
		if cfg.ClientSecret == "" {
			return nil, errors.New("client secret is required for the hmac scheme")
		}
		signer = signature.NewSymmetricSigner(cfg.ClientSecret)
	default:
		return nil, fmt.Errorf("unknown signing scheme %q", cfg.SigningScheme)
	}

	var verifier signature.NotificationVerifier
	if cfg.ProviderPublicKey != nil {
		verifier = signature.NewAsymmetricVerifier(cfg.ProviderPublicKey)
	}

	return &Client{
		cfg:         cfg,
		httpClient:  httpClient,
		signer:      signer,
		tokenSigner: tokenSigner,
		verifier:    verifier,
		legacy:      signature.Legacy{UserID: cfg.LegacyUserID, Password: cfg.LegacyPassword},
		logger:      logger,
		now:         cfg.Now,
	}, nil
}

// ----------------- OUTBOUND -----------------

func (c *Client) CreateSession(ctx context.Context, method paymentmodel.Method, req gw.SessionRequest) (*gw.Session, error) {
	switch method {
	case paymentmodel.MethodQRIS:
		return c.CreateQRIS(ctx, req)
	case paymentmodel.MethodVirtualAccount:
		return c.CreateVirtualAccount(ctx, req)
	default:
		return nil, internal.ErrUnsupportedPaymentMethod
	}
}

func (c *Client) CreateQRIS(ctx context.Context, req gw.SessionRequest) (*gw.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}
	expiresAt := c.expiry(req.ExpiresAt)

	body := gw.QRGenerateRequest{
		PartnerReferenceNo: req.PartnerReferenceNo,
		Amount:             gw.NewAmount(req.Amount, c.currency(req.Currency)),
		MerchantID:         c.cfg.MerchantID,
		StoreID:            c.cfg.StoreID,
		TerminalID:         c.cfg.TerminalID,
		ValidityPeriod:     signature.Timestamp(expiresAt),
		AdditionalInfo:     c.additionalInfo(),
	}

	var resp gw.QRGenerateResponse
	raw, err := c.post(ctx, gw.PathQRGenerate, body, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ResponseCode != gw.CodeQRGenerateOK {
		return nil, c.rejected(gw.PathQRGenerate, resp.ResponseCode, resp.ResponseMessage)
	}

	qr := resp.QRURL
	if qr == "" {
		qr = resp.QRContent
	}
	providerID := resp.ReferenceNo
	if providerID == "" {
		providerID = resp.PartnerReferenceNo
	}

	c.logger.Info("qris session created",
		"partner_reference_no", req.PartnerReferenceNo,
		"provider_payment_id", providerID)

	return &gw.Session{
		Method:            paymentmodel.MethodQRIS,
		ProviderPaymentID: providerID,
		QRURL:             qr,
		ExpiresAt:         &expiresAt,
		Raw:               raw,
	}, nil
}

func (c *Client) CreateVirtualAccount(ctx context.Context, req gw.SessionRequest) (*gw.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}
	expiresAt := c.expiry(req.ExpiresAt)

	customerNo := req.CustomerNo
	if customerNo == "" {
		customerNo = gw.CustomerNumber(req.PartnerReferenceNo, 0)
	}
	name := req.CustomerName
	if name == "" {
		name = "Account Rental"
	}
	vaNo := strings.TrimSpace(c.cfg.PartnerServiceID) + customerNo

	body := gw.CreateVARequest{
		PartnerServiceID:   c.cfg.PartnerServiceID,
		CustomerNo:         customerNo,
		VirtualAccountNo:   vaNo,
		VirtualAccountName: name,
		TrxID:              req.PartnerReferenceNo,
		TotalAmount:        gw.NewAmount(req.Amount, c.currency(req.Currency)),
		ExpiredDate:        signature.Timestamp(expiresAt),
		AdditionalInfo:     c.additionalInfo(),
	}

	var resp gw.CreateVAResponse
	raw, err := c.post(ctx, gw.PathVACreate, body, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ResponseCode != gw.CodeVACreateOK {
		return nil, c.rejected(gw.PathVACreate, resp.ResponseCode, resp.ResponseMessage)
	}

	data := resp.VirtualAccountData
	if data.VirtualAccountNo != "" {
		vaNo = strings.TrimSpace(data.VirtualAccountNo)
	}
	if data.VirtualAccountName != "" {
		name = data.VirtualAccountName
	}
	providerID := data.AdditionalInfo["referenceNo"]
	if providerID == "" {
		providerID = vaNo
	}

	c.logger.Info("virtual account created",
		"partner_reference_no", req.PartnerReferenceNo,
		"virtual_account_no", vaNo)

	return &gw.Session{
		Method:            paymentmodel.MethodVirtualAccount,
		ProviderPaymentID: providerID,
		BankAccountNo:     vaNo,
		BankAccountName:   name,
		ExpiresAt:         &expiresAt,
		Raw:               raw,
	}, nil
}

func (c *Client) QueryStatus(ctx context.Context, req gw.StatusRequest) (*gw.StatusResult, error) {
	path, okCode := gw.PathQRQuery, gw.CodeQRQueryOK
	body := gw.StatusQueryRequest{
		OriginalPartnerReferenceNo: req.PartnerReferenceNo,
		OriginalReferenceNo:        req.ProviderPaymentID,
		ServiceCode:                "47",
	}
	switch req.Method {
	case paymentmodel.MethodQRIS:
	case paymentmodel.MethodVirtualAccount:
		path, okCode = gw.PathVAStatus, gw.CodeVAStatusOK
		body.ServiceCode = "26"
		body.VirtualAccountNo = req.BankAccountNo
	default:
		return nil, internal.ErrUnsupportedPaymentMethod
	}

	var resp gw.StatusQueryResponse
	raw, err := c.post(ctx, path, body, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ResponseCode != okCode {
		return nil, c.rejected(path, resp.ResponseCode, resp.ResponseMessage)
	}

	result := &gw.StatusResult{
		Status:              gw.MapStatus(resp.LatestTransactionStatus),
		RawStatus:           resp.LatestTransactionStatus,
		ProviderReferenceNo: resp.OriginalReferenceNo,
		Raw:                 raw,
	}
	if resp.PaidTime != "" {
		if t, err := signature.ParseTimestamp(resp.PaidTime); err == nil {
			result.PaidAt = &t
		}
	}

	c.logger.Debug("payment status queried",
		"partner_reference_no", req.PartnerReferenceNo,
		"latest_status", resp.LatestTransactionStatus,
		"mapped_status", result.Status)

	return result, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, internal.ErrGateway.WithCause(fmt.Errorf("marshal %s request: %w", path, err))
	}

	ctx, cancel := internal.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var token string
	if c.signer.NeedsAccessToken() {
		token, err = c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
	}

	timestamp := signature.Timestamp(c.now())
	sig, err := c.signer.SignRequest(signature.Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        body,
		Timestamp:   timestamp,
		AccessToken: token,
	})
	if err != nil {
		return nil, internal.ErrGateway.WithCause(fmt.Errorf("sign %s: %w", path, err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return nil, internal.ErrGateway.WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-TIMESTAMP", timestamp)
	httpReq.Header.Set("X-SIGNATURE", sig)
	httpReq.Header.Set("X-PARTNER-ID", c.cfg.PartnerID)
	httpReq.Header.Set("X-EXTERNAL-ID", uuid.NewString())
	httpReq.Header.Set("CHANNEL-ID", c.cfg.ChannelID)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(httpReq, path, out)
}

func (c *Client) do(httpReq *http.Request, path string, out interface{}) ([]byte, error) {
	start := c.now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("payment gateway request failed",
			"path", path,
			"elapsed", time.Since(start),
			"error", err)
		return nil, internal.ErrGateway.WithCause(fmt.Errorf("%s: %w", path, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, internal.ErrGateway.WithCause(fmt.Errorf("read %s response: %w", path, err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.logger.Error("payment gateway returned server error",
			"path", path,
			"status_code", resp.StatusCode)
		return nil, internal.ErrGateway.WithCause(fmt.Errorf("%s returned status %d", path, resp.StatusCode))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, internal.ErrGateway.WithCause(fmt.Errorf("decode %s response (status %d): %w", path, resp.StatusCode, err))
	}
	return raw, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	timestamp := signature.Timestamp(c.now())
	sig, err := c.tokenSigner.SignAccessToken(c.cfg.ClientID, timestamp)
	if err != nil {
		return "", internal.ErrGateway.WithCause(fmt.Errorf("sign access token: %w", err))
	}

	body, _ := json.Marshal(gw.AccessTokenRequest{GrantType: "client_credentials"})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(gw.PathAccessToken), bytes.NewReader(body))
	if err != nil {
		return "", internal.ErrGateway.WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-TIMESTAMP", timestamp)
	httpReq.Header.Set("X-CLIENT-KEY", c.cfg.ClientID)
	httpReq.Header.Set("X-SIGNATURE", sig)

	var tok gw.AccessTokenResponse
	if _, err := c.do(httpReq, gw.PathAccessToken, &tok); err != nil {
		return "", err
	}
	if tok.ResponseCode != gw.CodeAccessTokenOK || tok.AccessToken == "" {
		return "", c.rejected(gw.PathAccessToken, tok.ResponseCode, tok.ResponseMessage)
	}

	ttl := 15 * time.Minute
	if secs, err := strconv.Atoi(tok.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	if ttl > tokenSafetyMargin {
		ttl -= tokenSafetyMargin
	}

	c.token = tok.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	return c.token, nil
}

func (c *Client) rejected(path, code, message string) error {
	c.logger.Warn("payment gateway rejected request",
		"path", path,
		"response_code", code,
		"response_message", message)
	return internal.ErrGateway.WithCause(fmt.Errorf("%s: %s %s", path, code, message))
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func (c *Client) currency(v string) string {
	if v != "" {
		return v
	}
	return c.cfg.Currency
}

func (c *Client) expiry(requested time.Time) time.Time {
	if !requested.IsZero() {
		return requested
	}
	return c.now().Add(c.cfg.SessionTTL)
}

func (c *Client) additionalInfo() map[string]string {
	if c.cfg.CallbackURL == "" {
		return nil
	}
	return map[string]string{"callbackUrl": c.cfg.CallbackURL}
}

// ----------------- INBOUND -----------------

// VerifyNotification authenticates a modern provider callback. The signature covers the configured
// endpoint path, so a request that arrived on any other path is rejected outright.
func (c *Client) VerifyNotification(r *http.Request, body []byte, path string) error {
	if c.verifier == nil {
		return internal.ErrInvalidSignature.WithCause(signature.ErrMissingKey)
	}
	if r.URL.Path != path {
		return internal.ErrInvalidSignature.WithCause(fmt.Errorf("path %s does not match %s", r.URL.Path, path))
	}

	timestamp := r.Header.Get("X-TIMESTAMP")
	sig := r.Header.Get("X-SIGNATURE")
	if timestamp == "" || sig == "" {
		return internal.ErrInvalidSignature.WithCause(errors.New("missing signature headers"))
	}

	err := c.verifier.VerifyNotification(signature.Request{
		Method:    r.Method,
		Path:      path,
		Body:      body,
		Timestamp: timestamp,
	}, sig)
	if err != nil {
		return internal.ErrInvalidSignature.WithCause(err)
	}
	return nil
}

func (c *Client) VerifyLegacyNotification(billNo, statusCode, sig string) error {
	if err := c.legacy.Verify(billNo, statusCode, sig); err != nil {
		return internal.ErrInvalidSignature.WithCause(err)
	}
	return nil
}
